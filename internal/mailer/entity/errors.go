package entity

import (
	"errors"
	"fmt"
)

var (
	ErrSend    = errors.New("mailer: send failed")
	ErrQueue   = errors.New("mailer: queue operation failed")
	ErrConsume = errors.New("mailer: consume failed")

	// ErrAttachmentTooLarge is returned when a stored attachment exceeds the size limit.
	ErrAttachmentTooLarge = errors.New("mailer: attachment exceeds the size limit")
)

// SendError is returned for a transport submission that failed.
type SendError struct {
	Message   MailMessage
	Provider  string
	Code      string
	Temporary bool
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("mailer: send via %s failed (%s): %v", e.Provider, e.Code, e.Err)
}

func (e *SendError) Unwrap() error        { return e.Err }
func (e *SendError) Is(target error) bool { return target == ErrSend }

// QueueError is returned when declaring or publishing to a queue fails.
type QueueError struct {
	Queue string
	Op    string
	Err   error
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("mailer: %s queue %q: %v", e.Op, e.Queue, e.Err)
}

func (e *QueueError) Unwrap() error        { return e.Err }
func (e *QueueError) Is(target error) bool { return target == ErrQueue }

// ConsumeError describes a job that could not be delivered.
type ConsumeError struct {
	Queue   string
	JobID   string
	Attempt int
	Outcome Outcome
	Err     error
}

func (e *ConsumeError) Error() string {
	return fmt.Sprintf("mailer: job %q from %q attempt %d %s: %v", e.JobID, e.Queue, e.Attempt, e.Outcome, e.Err)
}

func (e *ConsumeError) Unwrap() error        { return e.Err }
func (e *ConsumeError) Is(target error) bool { return target == ErrConsume }
