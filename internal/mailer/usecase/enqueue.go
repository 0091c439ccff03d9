package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
	"github.com/shandysiswandi/gomailer/internal/pkg/storage"
)

type EnqueueInput struct {
	Queue   string `validate:"required,queuename"`
	Message entity.MailMessage
}

// Enqueue publishes a mail job and returns once the broker accepted it.
// Publishing is not retried.
func (s *Usecase) Enqueue(ctx context.Context, in EnqueueInput) (entity.EnqueueReceipt, error) {
	ctx, span := s.startSpan(ctx, "Enqueue")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return entity.EnqueueReceipt{}, goerror.NewInvalidInput(err)
	}
	if len(in.Message.Recipients()) == 0 {
		return entity.EnqueueReceipt{}, goerror.NewInvalidInput(nil, "to", "to must contain at least one recipient")
	}
	if err := s.checkAttachments(ctx, in.Message); err != nil {
		return entity.EnqueueReceipt{}, err
	}

	if err := s.repoMQ.DeclareQueue(ctx, in.Queue); err != nil {
		return entity.EnqueueReceipt{}, s.queueFailed(ctx, in.Queue, "declare", err)
	}

	job := entity.QueueJob{
		ID:         s.uuid.Generate(),
		EnqueuedAt: s.clock.Now(),
		Message:    in.Message,
	}

	res, err := s.repoMQ.PublishJob(ctx, in.Queue, job)
	s.metrics.ObserveEnqueue(in.Queue, err)
	if err != nil {
		return entity.EnqueueReceipt{}, s.queueFailed(ctx, in.Queue, "publish", err)
	}

	message := fmt.Sprintf("Message in queue %s successfully", in.Queue)
	slog.InfoContext(ctx, "mail job published",
		"title", "Enqueue",
		"code", "ok",
		"message", message,
		"http_status", http.StatusOK,
		"queue", in.Queue,
		"job_id", job.ID,
	)

	return entity.EnqueueReceipt{
		Status:          http.StatusOK,
		Message:         message,
		Queue:           in.Queue,
		JobID:           job.ID,
		BrokerMessageID: res.MessageID,
	}, nil
}

func (s *Usecase) queueFailed(ctx context.Context, queue, op string, err error) error {
	qerr := &entity.QueueError{Queue: queue, Op: op, Err: err}
	slog.ErrorContext(ctx, "failed to "+op+" queue",
		"title", "Enqueue",
		"code", goerror.CodeUnavailable.String(),
		"message", qerr.Error(),
		"http_status", http.StatusServiceUnavailable,
		"queue", queue,
	)
	return goerror.NewUnavailable(qerr, "Failed to queue message")
}

// checkAttachments makes sure every referenced object exists before a job
// carrying it is published.
func (s *Usecase) checkAttachments(ctx context.Context, msg entity.MailMessage) error {
	for i, a := range msg.Attachments {
		if a.Path == "" {
			continue
		}

		field := fmt.Sprintf("attachments[%d].path", i)
		if s.repoFile == nil {
			return goerror.NewInvalidInput(nil, field, "attachment paths need object storage, which is disabled")
		}
		err := s.repoFile.Exists(ctx, a.Path)
		switch {
		case err == nil:
			continue
		case errors.Is(err, storage.ErrInvalidRef):
			return goerror.NewInvalidInput(nil, field, "must be <bucket>/<key>")
		case errors.Is(err, storage.ErrNotFound):
			return goerror.NewInvalidInput(nil, field, "attachment object not found")
		case errors.Is(err, entity.ErrAttachmentTooLarge):
			return goerror.NewInvalidInput(nil, field, "attachment object exceeds the size limit")
		default:
			slog.ErrorContext(ctx, "failed to check attachment object", "path", a.Path, "error", err)
			return goerror.NewUnavailable(err, "Attachment storage is unavailable")
		}
	}
	return nil
}
