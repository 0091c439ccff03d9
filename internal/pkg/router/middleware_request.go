package router

import (
	"net"
	"net/http"
	"strings"

	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/uid"
)

// HeaderCorrelationID carries the correlation ID in and out of the API. The
// same value is copied to the cID header of every job the request enqueues.
const HeaderCorrelationID = "X-Correlation-ID"

const maxCorrelationIDLen = 128

// middlewareRequestContext resolves the client address behind proxies and
// attaches a correlation ID to the request context and the response.
func middlewareRequestContext(ids uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := clientIP(r); ip != "" {
				r.RemoteAddr = ip
			}

			cID := correlationID(r.Header.Get(HeaderCorrelationID))
			if cID == "" {
				cID = correlationID(r.Header.Get("X-Request-ID"))
			}
			if cID == "" && ids != nil {
				cID = ids.Generate()
			}
			if cID != "" {
				w.Header().Set(HeaderCorrelationID, cID)
				r = r.WithContext(instrument.SetCorrelationID(r.Context(), cID))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// correlationID rejects header-splitting values and bounds the length.
func correlationID(v string) string {
	if strings.ContainsAny(v, "\r\n") {
		return ""
	}
	v = strings.TrimSpace(v)
	if len(v) > maxCorrelationIDLen {
		v = v[:maxCorrelationIDLen]
	}
	return v
}

// clientIP prefers the proxy headers in trust order and falls back to the
// connection address. Values that do not parse as an IP are ignored.
func clientIP(r *http.Request) string {
	candidates := []string{
		r.Header.Get("True-Client-IP"),
		r.Header.Get("X-Real-IP"),
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		candidates = append(candidates, first)
	}

	for _, c := range candidates {
		if c = strings.TrimSpace(c); net.ParseIP(c) != nil {
			return c
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return ""
}
