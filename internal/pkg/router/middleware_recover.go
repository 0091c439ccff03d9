package router

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/shandysiswandi/gomailer/internal/pkg/stacktrace"
)

// middlewareRecoverer turns a handler panic into a 500 envelope and logs the
// frames from this module. http.ErrAbortHandler is re-raised.
func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			//nolint:errorlint // sentinel panic value
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			stack := debug.Stack()
			var frames any = string(stack)
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				frames = paths
			}

			slog.ErrorContext(r.Context(), "panic while serving request",
				"title", "router.recover",
				"code", "panic",
				"message", rvr,
				"http_status", http.StatusInternalServerError,
				"route", matchedRoutePath(r),
				"stack", frames,
			)

			writeMessage(w, "Internal server error", http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
