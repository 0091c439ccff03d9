package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrEmptyJob is returned by DecodeJob for a zero length body.
	ErrEmptyJob = errors.New("mailer: empty queue message")
	// ErrUndecodableJob is returned by DecodeJob when the body is neither an
	// envelope nor a mail message.
	ErrUndecodableJob = errors.New("mailer: undecodable queue message")
)

// QueueJob is the envelope published for every queued mail.
type QueueJob struct {
	ID         string      `json:"id"`
	Attempt    int         `json:"attempt"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	LastError  string      `json:"last_error,omitempty"`
	Message    MailMessage `json:"message"`
}

// Encode marshals the envelope.
func (j QueueJob) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// DecodeJob reads an envelope or, for older producers, a bare mail message.
// A bare message gets attempt 0 and an empty id.
func DecodeJob(body []byte) (QueueJob, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return QueueJob{}, ErrEmptyJob
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return QueueJob{}, errors.Join(ErrUndecodableJob, err)
	}

	if raw, ok := fields["message"]; ok && len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		var job QueueJob
		if err := json.Unmarshal(body, &job); err != nil {
			return QueueJob{}, errors.Join(ErrUndecodableJob, err)
		}
		return job, nil
	}

	var msg MailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return QueueJob{}, errors.Join(ErrUndecodableJob, err)
	}
	return QueueJob{Message: msg}, nil
}
