package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/shandysiswandi/gomailer/internal/pkg/stacktrace"
)

// handle runs handler with panic recovery and, when autoAck is set, settles
// a message the handler left unsettled.
func handle(ctx context.Context, kind string, handler Handler, msg Message, autoAck bool) error {
	herr := callHandlerWithRecover(ctx, kind, func() error { return handler(ctx, msg) })
	if !autoAck || msg == nil {
		return herr
	}

	if s, ok := msg.(interface{ settled() bool }); ok && s.settled() {
		return herr
	}

	if herr == nil {
		return msg.Ack(ctx)
	}
	if n, ok := msg.(Nackable); ok {
		return n.Nack(ctx, true)
	}
	return herr
}

func callHandlerWithRecover(ctx context.Context, kind string, fn func() error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", string(stack))
			}
			err = fmt.Errorf("pkgmessage: panic in %s handler: %v", kind, rvr)
		}
	}()

	return fn()
}

// settleOnce is embedded by every delivery type. Only the first Ack or Nack
// reaches the broker.
type settleOnce struct {
	done atomic.Bool
}

func (s *settleOnce) settled() bool { return s.done.Load() }

// claim reports whether the caller settles the delivery. It refuses once ctx
// is done, leaving the delivery to the broker's redelivery.
func (s *settleOnce) claim(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return !s.done.Swap(true), nil
}
