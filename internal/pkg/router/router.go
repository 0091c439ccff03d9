package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/casbin/casbin/v3"
	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/gomailer/internal/pkg/config"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/jwt"
	"github.com/shandysiswandi/gomailer/internal/pkg/uid"
)

// Handler serves one API endpoint. The returned value becomes the data of
// the success envelope; an error is rendered through goerror.
type Handler func(r *Request) (any, error)

// Config holds dependencies required to build a Router.
type Config struct {
	// Config is read live for the maintenance switch.
	Config config.Config
	// UUID generates correlation IDs for requests that carry none.
	UUID       uid.StringID
	Instrument instrument.Instrumentation
	// JWT verifies bearer tokens. Nil leaves every endpoint public.
	JWT jwt.JWT
	// Enforcer applies authorization policies. Nil allows every authenticated client.
	Enforcer *casbin.Enforcer
	// Health reports readiness on GET /health. Nil always reports ready.
	Health func(ctx context.Context) error
	// Metrics is served on GET /metrics when set.
	Metrics http.Handler
	// MaxBodyBytes caps JSON request bodies; zero means no cap.
	MaxBodyBytes int64
}

// Router serves the mail API. Endpoints registered through GET and POST run
// behind the shared middleware chain; the welcome, health and metrics routes
// do not.
type Router struct {
	hr      *httprouter.Router
	mws     []Middleware
	maxBody int64
}

// NewRouter builds the router with its middleware chain in order: recover,
// request context, observability, maintenance, then authentication and
// authorization when a verifier is configured.
func NewRouter(cfg Config) *Router {
	hr := &httprouter.Router{
		RedirectTrailingSlash:  true,
		RedirectFixedPath:      true,
		HandleMethodNotAllowed: true,
		HandleOPTIONS:          true,
		SaveMatchedRoutePath:   true,
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeMessage(w, "endpoint not found", http.StatusNotFound)
		}),
		MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeMessage(w, "method not allowed", http.StatusMethodNotAllowed)
		}),
	}

	registerSystemRoutes(hr, cfg.Health, cfg.Metrics)

	ro := &Router{
		hr:      hr,
		maxBody: cfg.MaxBodyBytes,
		mws: []Middleware{
			middlewareRecoverer,
			middlewareRequestContext(cfg.UUID),
			middlewareObservability(cfg.Instrument),
			middlewareMaintenance(cfg.Config),
		},
	}

	if cfg.JWT == nil {
		slog.Warn("router: authentication is disabled, every endpoint is public")
		return ro
	}

	ro.mws = append(ro.mws, middlewareAuthentication(cfg.JWT), middlewareAuthorization(cfg.Enforcer))
	return ro
}

func registerSystemRoutes(hr *httprouter.Router, health func(context.Context) error, metrics http.Handler) {
	hr.GET("/", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeMessage(w, "Welcome to API GoMailer", http.StatusOK)
	})

	hr.GET("/health", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				slog.WarnContext(r.Context(), "health check failed", "error", err)
				writeMessage(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		writeMessage(w, "ok", http.StatusOK)
	})

	if metrics != nil {
		hr.Handler(http.MethodGet, "/metrics", metrics)
	}
}

// GET registers a GET endpoint.
func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodGet, path, h, mws...)
}

// POST registers a POST endpoint.
func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPost, path, h, mws...)
}

func (r *Router) endpoint(method, path string, h Handler, mws ...Middleware) {
	serve := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := h(&Request{Request: req, maxBody: r.maxBody})
		if err != nil {
			if rec, ok := w.(*statusRecorder); ok {
				rec.err = err
			}
			writeError(w, err)
			return
		}
		writeSuccess(w, resp)
	})

	r.hr.Handler(method, path, Chain(serve, append(r.mws, mws...)...))
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}
