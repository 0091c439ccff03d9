package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/gomailer/internal/pkg/config"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func newTestRouter(t *testing.T, health func(context.Context) error) (*Router, jwt.JWT) {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(`
app:
  maintenance:
    endpoints: "/api/v1/mail/attachments"
`))
	require.NoError(t, err)

	tokens, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(strings.Repeat("k", 64)),
		Issuer:    "gomailer",
		Audiences: []string{"gomailer-api"},
		TTL:       time.Hour,
		Clock:     wallClock{},
		UUID:      fixedID("tok"),
	})
	require.NoError(t, err)

	enforcer, err := NewEnforcer(Policies{
		Rules: [][]string{
			{"sender", "/api/v1/mail/send", http.MethodPost},
			{"admin", "*", "*"},
		},
		Groups: [][]string{{"billing", "sender"}},
	})
	require.NoError(t, err)

	r := NewRouter(Config{
		Config:     cfg,
		UUID:      fixedID("cid-1"),
		JWT:        tokens,
		Instrument: instrument.NewNoop(),
		Enforcer:   enforcer,
		Health:     health,
		Metrics:    http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	})

	r.POST("/api/v1/mail/send", func(*Request) (any, error) {
		return map[string]string{"ok": "yes"}, nil
	})
	r.GET("/api/v1/mail/deliveries/:job_id", func(req *Request) (any, error) {
		if req.GetParam("job_id") == "missing" {
			return nil, goerror.NewBusiness("no delivery recorded for this job", goerror.CodeNotFound)
		}
		return nil, nil
	})
	r.POST("/api/v1/mail/attachments", func(*Request) (any, error) { return nil, nil })

	return r, tokens
}

func do(r http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(`{}`))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicRoutes(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "").Code)

	metrics := do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Equal(t, "# metrics", metrics.Body.String())

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/nope", "").Code)
}

func TestRouter_HealthFailure(t *testing.T) {
	r, _ := newTestRouter(t, func(context.Context) error { return errors.New("broker down") })

	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/health", "").Code)
}

func TestRouter_AuthAndPolicy(t *testing.T) {
	r, tokens := newTestRouter(t, nil)

	billing, err := tokens.Generate("billing")
	require.NoError(t, err)
	reporting, err := tokens.Generate("reporting")
	require.NoError(t, err)
	admin, err := tokens.Generate("ops", "admin")
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		target string
		token  string
		want   int
	}{
		{name: "no token", method: http.MethodPost, target: "/api/v1/mail/send", want: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodPost, target: "/api/v1/mail/send", token: "abc", want: http.StatusUnauthorized},
		{name: "group grants send", method: http.MethodPost, target: "/api/v1/mail/send", token: billing, want: http.StatusOK},
		{name: "no rule", method: http.MethodPost, target: "/api/v1/mail/send", token: reporting, want: http.StatusForbidden},
		{name: "sender cannot read log", method: http.MethodGet, target: "/api/v1/mail/deliveries/job-1", token: billing, want: http.StatusForbidden},
		{name: "role wildcard", method: http.MethodGet, target: "/api/v1/mail/deliveries/job-1", token: admin, want: http.StatusNoContent},
		{name: "error mapped", method: http.MethodGet, target: "/api/v1/mail/deliveries/missing", token: admin, want: http.StatusNotFound},
		{name: "maintenance", method: http.MethodPost, target: "/api/v1/mail/attachments", token: admin, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, tt.method, tt.target, tt.token)

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "cid-1", rec.Header().Get(HeaderCorrelationID))
		})
	}
}

func TestNewEnforcer_BadRule(t *testing.T) {
	_, err := NewEnforcer(Policies{Rules: [][]string{{"sender", "/x"}}})
	assert.Error(t, err)

	_, err = NewEnforcer(Policies{Groups: [][]string{{"billing"}}})
	assert.Error(t, err)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }), mw("a"), nil, mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestRouter_MaintenanceSwitch(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  maintenance:\n    enabled: true\n"))
	require.NoError(t, err)

	r := NewRouter(Config{Config: cfg, UUID: fixedID("cid-2"), Instrument: instrument.NewNoop()})
	r.POST("/api/v1/mail/send", func(*Request) (any, error) { return nil, nil })

	rec := do(r, http.MethodPost, "/api/v1/mail/send", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "120", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "").Code)
}

func TestRouter_RecoverAndBodyLimit(t *testing.T) {
	r := NewRouter(Config{UUID: fixedID("cid-3"), Instrument: instrument.NewNoop(), MaxBodyBytes: 8})
	r.POST("/panic", func(*Request) (any, error) { panic("boom") })
	r.POST("/decode", func(req *Request) (any, error) {
		var v map[string]any
		return nil, req.DecodeBody(&v)
	})

	panicked := do(r, http.MethodPost, "/panic", "")
	tooLarge := httptest.NewRecorder()
	r.ServeHTTP(tooLarge, httptest.NewRequest(http.MethodPost, "/decode", strings.NewReader(`{"subject":"far too long"}`)))

	assert.Equal(t, http.StatusInternalServerError, panicked.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, panicked.Body.String())
	assert.Equal(t, http.StatusUnprocessableEntity, tooLarge.Code)
	assert.Contains(t, tooLarge.Body.String(), "body exceeds the size limit")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "true client ip", headers: map[string]string{"True-Client-IP": "203.0.113.7"}, remote: "10.0.0.1:5000", want: "203.0.113.7"},
		{name: "first forwarded hop", headers: map[string]string{"X-Forwarded-For": "198.51.100.2, 10.0.0.9"}, remote: "10.0.0.1:5000", want: "198.51.100.2"},
		{name: "garbage header falls back", headers: map[string]string{"X-Real-IP": "not-an-ip"}, remote: "10.0.0.1:5000", want: "10.0.0.1"},
		{name: "nothing usable", remote: "pipe", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestCorrelationID(t *testing.T) {
	assert.Equal(t, "", correlationID("a\r\nSet-Cookie: x"))
	assert.Equal(t, "abc", correlationID("  abc "))
	assert.Len(t, correlationID(strings.Repeat("x", 300)), maxCorrelationIDLen)
}
