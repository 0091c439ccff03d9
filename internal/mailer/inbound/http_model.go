package inbound

import (
	"net/http"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
)

type SendTemplateRequest struct {
	Message entity.MailMessage  `json:"message"`
	View    entity.TemplateView `json:"view"`
}

type SendGroupRequest struct {
	Message entity.MailMessage `json:"message"`
	Mode    string             `json:"mode" example:"stop_on_error"`
}

type SendGroupTemplateRequest struct {
	Message entity.MailMessage  `json:"message"`
	View    entity.TemplateView `json:"view"`
	Mode    string              `json:"mode" example:"continue_on_error"`
}

type SendResponse struct {
	Status    int    `json:"status" example:"200"`
	Provider  string `json:"provider,omitempty" example:"SMTP"`
	MessageID string `json:"message_id,omitempty"`

	msg string
}

func (r SendResponse) Message() string { return r.msg }

type RecipientOutcomeResponse struct {
	Recipient string `json:"recipient"`
	Status    string `json:"status" example:"sent"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GroupResponse is written with 502 when any recipient failed.
type GroupResponse struct {
	Mode     string                     `json:"mode"`
	Sent     int                        `json:"sent"`
	Failed   int                        `json:"failed"`
	Skipped  int                        `json:"skipped"`
	Outcomes []RecipientOutcomeResponse `json:"outcomes"`

	status int
	msg    string
}

func (r GroupResponse) StatusCode() int { return r.status }
func (r GroupResponse) Message() string { return r.msg }

type EnqueueResponse struct {
	Status          int    `json:"status" example:"200"`
	Queue           string `json:"queue" example:"mail"`
	JobID           string `json:"job_id"`
	BrokerMessageID string `json:"broker_message_id,omitempty"`

	msg string
}

func (r EnqueueResponse) Message() string { return r.msg }

type DeliveryResponse struct {
	ID         int64    `json:"id"`
	Queue      string   `json:"queue"`
	Provider   string   `json:"provider"`
	Subject    string   `json:"subject"`
	Recipients []string `json:"recipients"`
	Status     string   `json:"status" example:"sent"`
	Attempt    int      `json:"attempt"`
	MessageID  string   `json:"message_id,omitempty"`
	ErrorCode  string   `json:"error_code,omitempty"`
	Error      string   `json:"error,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

type DeliveriesResponse struct {
	JobID      string             `json:"job_id"`
	Deliveries []DeliveryResponse `json:"deliveries"`
}

type AttachmentResponse struct {
	Path        string `json:"path" example:"mail-attachments/2026/10/19/0192.../report.pdf"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func (AttachmentResponse) StatusCode() int { return http.StatusCreated }

func toGroupResponse(report entity.GroupReport) GroupResponse {
	resp := GroupResponse{
		Mode:     report.Mode.String(),
		Sent:     report.Sent,
		Failed:   report.Failed,
		Skipped:  report.Skipped,
		Outcomes: make([]RecipientOutcomeResponse, 0, len(report.Outcomes)),
		status:   http.StatusOK,
		msg:      "Email sent successfully",
	}
	for _, o := range report.Outcomes {
		resp.Outcomes = append(resp.Outcomes, RecipientOutcomeResponse{
			Recipient: o.Recipient,
			Status:    string(o.Status),
			MessageID: o.MessageID,
			Error:     o.Error,
		})
	}
	return resp
}
