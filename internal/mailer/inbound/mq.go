package inbound

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/gomailer/internal/pkg/config"
	"github.com/shandysiswandi/gomailer/internal/pkg/goroutine"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/messaging"
	"github.com/shandysiswandi/gomailer/internal/pkg/uid"
	"github.com/shandysiswandi/gomailer/internal/shared/event"
)

const (
	resubscribeBackoff    = 500 * time.Millisecond
	resubscribeBackoffMax = 30 * time.Second
)

// RegisterMQConsumer starts worker.count workers on every queue listed in
// worker.queues (default the mail queue).
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	consumer messaging.Consumer,
	uuid uid.StringID,
	uc ucConsumer,
	ins instrument.Instrumentation,
) {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	queues := cfg.GetArray("worker.queues")
	if len(queues) == 0 {
		queues = []string{event.MailQueueDestination}
	}

	count := cfg.GetInt("worker.count")
	if count <= 0 {
		count = 1
	}

	var opts []messaging.ConsumeOption
	if sub := cfg.GetString("worker.subscription"); sub != "" {
		opts = append(opts, messaging.WithSubscription(sub))
	}

	for _, queue := range queues {
		for i := range count {
			started := routine.Go(ctx, func(pCtx context.Context) error {
				slog.InfoContext(pCtx, "Running worker for mail queue", "queue", queue, "worker", i)
				return RunWorker(pCtx, consumer, queue, mqHandler.ProcessMailJob, opts...)
			})
			if !started {
				slog.WarnContext(ctx, "mail worker not started", "queue", queue, "worker", i)
			}
		}
	}
}

// RunWorker consumes queue one message at a time until ctx is done. The
// handler settles every message itself. When the broker cancels the
// consumer the subscription is opened again after a growing delay.
//
// It returns nil once ctx is cancelled and an error only for a consumer
// that can never start.
func RunWorker(ctx context.Context, consumer messaging.Consumer, queue string, handler messaging.Handler, opts ...messaging.ConsumeOption) error {
	opts = append([]messaging.ConsumeOption{
		messaging.WithAutoAck(false),
		messaging.WithConcurrency(1),
		messaging.WithPrefetch(1),
		messaging.WithGroup(event.MailQueueConsumerGroup),
		messaging.WithChannel(event.MailQueueConsumerGroup),
	}, opts...)

	b := retry.NewFibonacci(resubscribeBackoff)
	b = retry.WithCappedDuration(resubscribeBackoffMax, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := consumer.Consume(ctx, queue, handler, opts...)
		if ctx.Err() != nil {
			return nil
		}

		switch {
		case errors.Is(err, messaging.ErrDestinationRequired),
			errors.Is(err, messaging.ErrHandlerRequired),
			errors.Is(err, messaging.ErrClosed):
			return err
		case errors.Is(err, messaging.ErrConsumerCancelled):
			slog.WarnContext(ctx, "mail consumer cancelled by broker, resubscribing", "queue", queue)
		default:
			slog.ErrorContext(ctx, "mail consumer stopped, resubscribing", "queue", queue, "error", err)
		}

		if err == nil {
			err = messaging.ErrConsumerCancelled
		}
		return retry.RetryableError(err)
	})
	if ctx.Err() != nil {
		slog.InfoContext(ctx, "mail worker stopped", "queue", queue)
		return nil
	}
	return err
}
