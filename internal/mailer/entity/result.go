package entity

import "time"

// Receipt is the status answer of a successful send.
type Receipt struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Provider  string `json:"provider,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

type RecipientOutcome struct {
	Recipient string          `json:"recipient"`
	Status    RecipientStatus `json:"status"`
	MessageID string          `json:"message_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// GroupReport lists one outcome per recipient, in input order.
type GroupReport struct {
	Mode     GroupMode          `json:"mode"`
	Outcomes []RecipientOutcome `json:"outcomes"`
	Sent     int                `json:"sent"`
	Failed   int                `json:"failed"`
	Skipped  int                `json:"skipped"`
}

// Record appends o and updates the counters.
func (r *GroupReport) Record(o RecipientOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case RecipientStatusSent:
		r.Sent++
	case RecipientStatusFailed:
		r.Failed++
	case RecipientStatusSkipped:
		r.Skipped++
	}
}

type EnqueueReceipt struct {
	Status          int    `json:"status"`
	Message         string `json:"message"`
	Queue           string `json:"queue"`
	JobID           string `json:"job_id"`
	BrokerMessageID string `json:"broker_message_id,omitempty"`
}

// ProcessResult describes how one delivery was handled.
type ProcessResult struct {
	Status  int     `json:"status"`
	Message string  `json:"message"`
	Outcome Outcome `json:"outcome"`
	JobID   string  `json:"job_id,omitempty"`
	Attempt int     `json:"attempt"`
	// Err is a *ConsumeError when the job failed.
	Err error `json:"-"`
}

type DeliveryLog struct {
	ID         int64          `json:"id"`
	JobID      string         `json:"job_id"`
	Queue      string         `json:"queue"`
	Provider   string         `json:"provider"`
	Subject    string         `json:"subject"`
	Recipients []string       `json:"recipients"`
	Status     DeliveryStatus `json:"status"`
	Attempt    int            `json:"attempt"`
	MessageID  string         `json:"message_id,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AttachmentRef points at an uploaded file. Path is usable as an attachment path.
type AttachmentRef struct {
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}
