package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shandysiswandi/gomailer/internal/pkg/jwt"
)

// middlewareAuthentication requires a bearer token issued to an API client
// and stores its claims on the request context for authorization.
func middlewareAuthentication(verifier jwt.JWT) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="gomailer"`)
				writeMessage(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(token)
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				writeMessage(w, "Token has expired", http.StatusUnauthorized)
				return
			case err != nil:
				writeMessage(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(jwt.SetAuth(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
