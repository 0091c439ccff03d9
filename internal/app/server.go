package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Start serves the API in the background. The returned channel closes on
// SIGINT, SIGTERM or SIGHUP, or when the listener fails.
func (a *App) Start() <-chan struct{} {
	sigCtx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		slog.Info("mail api listening", "address", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mail api listener failed", "error", err)
			stop()
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigCtx.Done()
		stop()
		slog.Info("shutdown requested")
	}()

	return done
}

// Stop drains the API first so in-flight requests can still enqueue, then
// cancels the workers, waits for them until ctx expires and releases every
// resource.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to drain mail api", "error", err)
	}

	a.cancel()

	waited := make(chan error, 1)
	go func() { waited <- a.goroutine.Wait() }()

	select {
	case err := <-waited:
		if err != nil {
			slog.ErrorContext(ctx, "mail workers stopped with errors", "error", err)
			break
		}
		slog.InfoContext(ctx, "mail workers stopped")
	case <-ctx.Done():
		slog.WarnContext(ctx, "mail workers did not stop before the deadline", "error", ctx.Err())
	}

	a.release(ctx)
	slog.InfoContext(ctx, "application stopped")
}
