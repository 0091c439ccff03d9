package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
	"github.com/shandysiswandi/gomailer/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomailer/internal/pkg/mail"
	"github.com/shandysiswandi/gomailer/internal/pkg/messaging"
	"github.com/shandysiswandi/gomailer/internal/shared/event"
)

const (
	msgProcessError  = "Cannot process message, consumer was cancelled"
	defaultBusyDelay = time.Second
)

// ProcessJob sends the mail carried by one delivery and settles it. It never
// returns an error: a failed job is requeued, republished with a higher
// attempt or dead-lettered, and the result reports which.
//
// A nil msg means the broker closed the consumer; nothing is settled.
func (s *Usecase) ProcessJob(ctx context.Context, msg messaging.Message) entity.ProcessResult {
	ctx, span := s.startSpan(ctx, "ProcessJob")
	defer span.End()

	if msg == nil {
		slog.WarnContext(ctx, "received null message",
			"title", "ProcessJob",
			"code", goerror.CodeNotAcceptable.String(),
			"message", msgProcessError,
			"http_status", http.StatusNotAcceptable,
		)
		return entity.ProcessResult{Status: http.StatusNotAcceptable, Message: msgProcessError, Outcome: entity.OutcomeIgnored}
	}

	queue := msg.Source()

	job, err := entity.DecodeJob(msg.Body())
	if err != nil {
		return s.rejectPoison(ctx, msg, queue, msg.ID(), err)
	}
	if job.ID == "" {
		job.ID = msg.ID()
	}
	if job.ID == "" {
		job.ID = s.uuid.Generate()
	}
	if err := s.validateMessage(job.Message); err != nil {
		return s.rejectPoison(ctx, msg, queue, job.ID, err)
	}

	key := queue + ":" + job.ID
	if res, done := s.guard(ctx, msg, queue, key, job); done {
		return res
	}

	receipt, err := s.deliver(ctx, "ProcessJob", job.Message)
	if err == nil {
		s.recordDelivery(ctx, queue, job, entity.DeliveryStatusSent, receipt.MessageID, nil)
		s.markIdempotency(ctx, key, idempotency.StateCompleted)
		s.ack(ctx, msg)

		message := fmt.Sprintf("%s in queue.", job.ID)
		slog.InfoContext(ctx, "mail job processed",
			"title", "ProcessJob",
			"code", "ok",
			"message", message,
			"http_status", http.StatusOK,
			"queue", queue,
			"job_id", job.ID,
			"attempt", job.Attempt,
		)
		return s.settled(queue, entity.ProcessResult{
			Status:  http.StatusOK,
			Message: message,
			Outcome: entity.OutcomeAcked,
			JobID:   job.ID,
			Attempt: job.Attempt,
		})
	}

	return s.handleFailure(ctx, msg, queue, key, job, err)
}

func (s *Usecase) handleFailure(ctx context.Context, msg messaging.Message, queue, key string, job entity.QueueJob, sendErr error) entity.ProcessResult {
	temporary := false
	var se *entity.SendError
	if errors.As(sendErr, &se) {
		temporary = se.Temporary
	}

	maxAttempts := s.cfg.GetInt("queue.max_attempts")
	result := entity.ProcessResult{
		Status:  http.StatusBadGateway,
		Message: sendErr.Error(),
		JobID:   job.ID,
		Attempt: job.Attempt,
	}

	switch {
	case maxAttempts <= 0:
		s.recordDelivery(ctx, queue, job, entity.DeliveryStatusFailed, "", sendErr)
		s.markIdempotency(ctx, key, idempotency.StateNone)
		s.nack(ctx, msg)
		result.Outcome = entity.OutcomeNacked

	case temporary && job.Attempt+1 < maxAttempts:
		next := job
		next.Attempt++
		next.LastError = sendErr.Error()

		s.recordDelivery(ctx, queue, job, entity.DeliveryStatusRequeued, "", sendErr)
		s.markIdempotency(ctx, key, idempotency.StateNone)
		if _, err := s.repoMQ.PublishJob(ctx, queue, next); err != nil {
			slog.ErrorContext(ctx, "failed to republish mail job", "queue", queue, "job_id", job.ID, "error", err)
			s.nack(ctx, msg)
			result.Outcome = entity.OutcomeNacked
			break
		}
		s.ack(ctx, msg)
		result.Outcome = entity.OutcomeRequeued

	default:
		job.LastError = sendErr.Error()
		s.recordDelivery(ctx, queue, job, entity.DeliveryStatusDeadLettered, "", sendErr)

		body, _ := job.Encode()
		outcome, err := s.deadLetter(ctx, queue, body, sendErr.Error())
		if err != nil {
			s.markIdempotency(ctx, key, idempotency.StateNone)
			s.nack(ctx, msg)
			result.Outcome = entity.OutcomeNacked
			break
		}
		s.markIdempotency(ctx, key, idempotency.StateFailed)
		s.ack(ctx, msg)
		result.Outcome = outcome
	}

	result.Err = &entity.ConsumeError{Queue: queue, JobID: job.ID, Attempt: job.Attempt, Outcome: result.Outcome, Err: sendErr}
	slog.WarnContext(ctx, "mail job failed",
		"title", "ProcessJob",
		"code", result.Outcome.String(),
		"message", sendErr.Error(),
		"http_status", result.Status,
		"queue", queue,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"max_attempts", maxAttempts,
	)
	return s.settled(queue, result)
}

// rejectPoison dead-letters a message that can never be sent and removes
// it from the queue.
func (s *Usecase) rejectPoison(ctx context.Context, msg messaging.Message, queue, jobID string, cause error) entity.ProcessResult {
	result := entity.ProcessResult{
		Status:  http.StatusNotAcceptable,
		Message: cause.Error(),
		JobID:   jobID,
	}

	outcome, err := s.deadLetter(ctx, queue, msg.Body(), cause.Error())
	if err != nil {
		s.nack(ctx, msg)
		result.Outcome = entity.OutcomeNacked
	} else {
		s.ack(ctx, msg)
		result.Outcome = outcome
	}

	result.Err = &entity.ConsumeError{Queue: queue, JobID: jobID, Outcome: result.Outcome, Err: cause}
	slog.ErrorContext(ctx, "rejected unprocessable mail job",
		"title", "ProcessJob",
		"code", goerror.CodeNotAcceptable.String(),
		"message", cause.Error(),
		"http_status", http.StatusNotAcceptable,
		"queue", queue,
		"job_id", jobID,
		"outcome", result.Outcome.String(),
	)
	return s.settled(queue, result)
}

// deadLetter publishes body to the dead-letter queue of queue. With dead
// lettering disabled the message is dropped.
func (s *Usecase) deadLetter(ctx context.Context, queue string, body []byte, reason string) (entity.Outcome, error) {
	if !s.cfg.GetBool("queue.dead_letter.enabled") {
		return entity.OutcomeDropped, nil
	}

	suffix := s.cfg.GetString("queue.dead_letter.suffix")
	if suffix == "" {
		suffix = event.MailDeadLetterSuffix
	}

	if err := s.repoMQ.PublishDeadLetter(ctx, queue+suffix, body, reason); err != nil {
		slog.ErrorContext(ctx, "failed to publish to dead-letter queue", "queue", queue+suffix, "error", err)
		return "", err
	}
	return entity.OutcomeDeadLettered, nil
}

// guard applies the idempotency state of key. done is true when the
// delivery was settled without sending.
func (s *Usecase) guard(ctx context.Context, msg messaging.Message, queue, key string, job entity.QueueJob) (entity.ProcessResult, bool) {
	if s.idempotency == nil {
		return entity.ProcessResult{}, false
	}

	lock := s.cfg.GetSecond("queue.idempotency.lock_seconds")
	if lock <= 0 {
		lock = time.Minute
	}

	state, err := s.idempotency.Acquire(ctx, key, lock)
	if err != nil {
		slog.WarnContext(ctx, "idempotency check skipped", "job_id", job.ID, "error", err)
		return entity.ProcessResult{}, false
	}

	switch state {
	case idempotency.StateNone:
		return entity.ProcessResult{}, false
	case idempotency.StateInProgress:
		// The lock may belong to a crashed worker. Without a pause the
		// redelivery comes straight back until the lock expires.
		delay := s.cfg.GetSecond("queue.idempotency.busy_delay_seconds")
		if delay <= 0 {
			delay = defaultBusyDelay
		}
		s.sleep(ctx, delay)
		s.nack(ctx, msg)
		return s.settled(queue, entity.ProcessResult{
			Status:  http.StatusConflict,
			Message: "job is being processed by another worker",
			Outcome: entity.OutcomeNacked,
			JobID:   job.ID,
			Attempt: job.Attempt,
		}), true
	default:
		s.ack(ctx, msg)
		slog.InfoContext(ctx, "duplicate mail job skipped", "job_id", job.ID, "state", state.String())
		return s.settled(queue, entity.ProcessResult{
			Status:  http.StatusOK,
			Message: "job already processed",
			Outcome: entity.OutcomeDuplicate,
			JobID:   job.ID,
			Attempt: job.Attempt,
		}), true
	}
}

// markIdempotency stores the final state of key. StateNone releases it so
// the job can run again.
func (s *Usecase) markIdempotency(ctx context.Context, key string, state idempotency.State) {
	if s.idempotency == nil {
		return
	}

	ttl := s.cfg.GetHour("queue.idempotency.ttl_hours")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	var err error
	switch state {
	case idempotency.StateCompleted:
		err = s.idempotency.MarkCompleted(ctx, key, ttl)
	case idempotency.StateFailed:
		err = s.idempotency.MarkFailed(ctx, key, ttl)
	default:
		err = s.idempotency.Release(ctx, key)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to store idempotency state", "key", key, "state", state.String(), "error", err)
	}
}

func (s *Usecase) recordDelivery(ctx context.Context, queue string, job entity.QueueJob, status entity.DeliveryStatus, messageID string, sendErr error) {
	if s.repoDB == nil {
		return
	}

	row := entity.DeliveryLog{
		ID:         s.uid.Generate(),
		JobID:      job.ID,
		Queue:      queue,
		Provider:   s.repoMail.Provider(),
		Subject:    job.Message.Subject,
		Recipients: job.Message.Recipients(),
		Status:     status,
		Attempt:    job.Attempt,
		MessageID:  messageID,
		CreatedAt:  s.clock.Now(),
	}
	if sendErr != nil {
		row.Error = sendErr.Error()
		row.ErrorCode = mail.Diagnose(sendErr).Code
		var se *entity.SendError
		if errors.As(sendErr, &se) {
			row.ErrorCode = se.Code
		}
	}

	if err := s.repoDB.CreateDeliveryLog(ctx, row); err != nil {
		slog.ErrorContext(ctx, "failed to repo create delivery log", "job_id", job.ID, "error", err)
	}
}

func (s *Usecase) ack(ctx context.Context, msg messaging.Message) {
	if err := msg.Ack(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to ack message", "queue", msg.Source(), "message_id", msg.ID(), "error", err)
	}
}

// nack asks for redelivery. Brokers without negative acknowledgement
// redeliver once the ack deadline passes.
func (s *Usecase) nack(ctx context.Context, msg messaging.Message) {
	n, ok := msg.(messaging.Nackable)
	if !ok {
		return
	}
	if err := n.Nack(ctx, true); err != nil {
		slog.ErrorContext(ctx, "failed to nack message", "queue", msg.Source(), "message_id", msg.ID(), "error", err)
	}
}

func (s *Usecase) settled(queue string, res entity.ProcessResult) entity.ProcessResult {
	s.metrics.ObserveJob(queue, res.Outcome)
	return res
}
