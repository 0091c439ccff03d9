package router

import (
	"log/slog"
	"net/http"

	"github.com/casbin/casbin/v3"
	"github.com/shandysiswandi/gomailer/internal/pkg/jwt"
)

// middlewareAuthorization asks the enforcer whether the token subject or one
// of its roles may call the matched route with the request method.
func middlewareAuthorization(enforcer *casbin.Enforcer) Middleware {
	return func(next http.Handler) http.Handler {
		if enforcer == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := jwt.GetAuth(r.Context())
			if claims == nil {
				writeMessage(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			route := matchedRoutePath(r)
			for _, sub := range claims.Principals() {
				ok, err := enforcer.Enforce(sub, route, r.Method)
				if err != nil {
					slog.ErrorContext(r.Context(), "failed to enforce policy", "subject", sub, "route", route, "error", err)
					writeMessage(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				if ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			slog.WarnContext(r.Context(), "request denied by policy", "subject", claims.Subject, "route", route, "method", r.Method)
			writeMessage(w, "Access denied", http.StatusForbidden)
		})
	}
}
