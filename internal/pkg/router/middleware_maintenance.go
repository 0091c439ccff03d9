package router

import (
	"net/http"
	"slices"

	"github.com/shandysiswandi/gomailer/internal/pkg/config"
)

// middlewareMaintenance answers 503 while app.maintenance.enabled is set, or
// for the route patterns listed in app.maintenance.endpoints. Both keys are
// read per request so a config reload takes effect without a restart.
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		if cfg == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.GetBool("app.maintenance.enabled") ||
				slices.Contains(cfg.GetArray("app.maintenance.endpoints"), matchedRoutePath(r)) {
				w.Header().Set("Retry-After", "120")
				writeMessage(w, "service is under maintenance", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
