package inbound

import (
	"errors"
	"time"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/mailer/usecase"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
	"github.com/shandysiswandi/gomailer/internal/pkg/router"
)

type HTTPEndpoint struct {
	uc             uc
	maxUploadBytes int64
}

// SendMail sends one message now.
// @Summary Send mail
// @Description Sends a message through the configured transport and waits for the provider answer.
// @Tags Mail
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body entity.MailMessage true "Mail options"
// @Success 200 {object} router.successResponse{data=SendResponse} "Email sent"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 502 {object} router.errorResponse "Provider rejected the message"
// @Router /api/v1/mail/send [post]
func (h *HTTPEndpoint) SendMail(r *router.Request) (any, error) {
	var req entity.MailMessage
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	receipt, err := h.uc.SendMail(r.Context(), usecase.SendMailInput{Message: req})
	if err != nil {
		return nil, err
	}

	return toSendResponse(receipt), nil
}

// SendMailWithTemplate renders the built-in layout into the html body and sends it.
// @Summary Send templated mail
// @Tags Mail
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SendTemplateRequest true "Mail options and template view"
// @Success 200 {object} router.successResponse{data=SendResponse} "Email sent"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 502 {object} router.errorResponse "Provider rejected the message"
// @Router /api/v1/mail/send/template [post]
func (h *HTTPEndpoint) SendMailWithTemplate(r *router.Request) (any, error) {
	var req SendTemplateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	receipt, err := h.uc.SendMailWithTemplate(r.Context(), usecase.SendMailWithTemplateInput{
		Message: req.Message,
		View:    req.View,
	})
	if err != nil {
		return nil, err
	}

	return toSendResponse(receipt), nil
}

// SendMailToGroup sends one copy per recipient.
// @Summary Send mail to a group
// @Description Sends the message to every address in "to" separately. Mode stop_on_error skips the rest after the first failure.
// @Tags Mail
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SendGroupRequest true "Mail options and mode"
// @Success 200 {object} router.successResponse{data=GroupResponse} "Every recipient sent"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 502 {object} router.successResponse{data=GroupResponse} "At least one recipient failed"
// @Router /api/v1/mail/send/group [post]
func (h *HTTPEndpoint) SendMailToGroup(r *router.Request) (any, error) {
	var req SendGroupRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	report, err := h.uc.SendMailToGroup(r.Context(), usecase.SendMailToGroupInput{
		Message: req.Message,
		Mode:    entity.GroupMode(req.Mode),
	})
	return groupResult(report, err)
}

// SendMailToGroupWithTemplate is SendMailToGroup with the rendered layout as html.
// @Summary Send templated mail to a group
// @Tags Mail
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SendGroupTemplateRequest true "Mail options, template view and mode"
// @Success 200 {object} router.successResponse{data=GroupResponse} "Every recipient sent"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 502 {object} router.successResponse{data=GroupResponse} "At least one recipient failed"
// @Router /api/v1/mail/send/group/template [post]
func (h *HTTPEndpoint) SendMailToGroupWithTemplate(r *router.Request) (any, error) {
	var req SendGroupTemplateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	report, err := h.uc.SendMailToGroupWithTemplate(r.Context(), usecase.SendMailToGroupWithTemplateInput{
		Message: req.Message,
		View:    req.View,
		Mode:    entity.GroupMode(req.Mode),
	})
	return groupResult(report, err)
}

// Enqueue publishes a mail job to a queue.
// @Summary Enqueue mail
// @Description Publishes the message as a job; a worker consuming the queue sends it.
// @Tags Queue
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param queue path string true "Queue name"
// @Param request body entity.MailMessage true "Mail options"
// @Success 200 {object} router.successResponse{data=EnqueueResponse} "Job published"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 503 {object} router.errorResponse "Broker unavailable"
// @Router /api/v1/mail/queues/{queue}/jobs [post]
func (h *HTTPEndpoint) Enqueue(r *router.Request) (any, error) {
	var req entity.MailMessage
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	receipt, err := h.uc.Enqueue(r.Context(), usecase.EnqueueInput{
		Queue:   r.GetParam("queue"),
		Message: req,
	})
	if err != nil {
		return nil, err
	}

	return EnqueueResponse{
		Status:          receipt.Status,
		Queue:           receipt.Queue,
		JobID:           receipt.JobID,
		BrokerMessageID: receipt.BrokerMessageID,
		msg:             receipt.Message,
	}, nil
}

// GetDeliveries lists the delivery attempts of a job.
// @Summary Delivery log of a job
// @Tags Queue
// @Security BearerAuth
// @Produce json
// @Param job_id path string true "Job ID"
// @Success 200 {object} router.successResponse{data=DeliveriesResponse} "Delivery attempts"
// @Failure 404 {object} router.errorResponse "Unknown job"
// @Failure 503 {object} router.errorResponse "Delivery log disabled"
// @Router /api/v1/mail/deliveries/{job_id} [get]
func (h *HTTPEndpoint) GetDeliveries(r *router.Request) (any, error) {
	jobID := r.GetParam("job_id")

	logs, err := h.uc.GetDeliveries(r.Context(), usecase.GetDeliveriesInput{JobID: jobID})
	if err != nil {
		return nil, err
	}

	resp := DeliveriesResponse{JobID: jobID, Deliveries: make([]DeliveryResponse, 0, len(logs))}
	for _, l := range logs {
		resp.Deliveries = append(resp.Deliveries, DeliveryResponse{
			ID:         l.ID,
			Queue:      l.Queue,
			Provider:   l.Provider,
			Subject:    l.Subject,
			Recipients: l.Recipients,
			Status:     l.Status.String(),
			Attempt:    l.Attempt,
			MessageID:  l.MessageID,
			ErrorCode:  l.ErrorCode,
			Error:      l.Error,
			CreatedAt:  l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return resp, nil
}

// UploadAttachment stores a file for later use as an attachment path.
// @Summary Upload attachment
// @Tags Mail
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Attachment"
// @Success 201 {object} router.successResponse{data=AttachmentResponse} "Stored"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "File too large"
// @Failure 503 {object} router.errorResponse "Object storage disabled"
// @Router /api/v1/mail/attachments [post]
func (h *HTTPEndpoint) UploadAttachment(r *router.Request) (any, error) {
	file, header, err := r.FormSingleFile("file", h.maxUploadBytes)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ref, err := h.uc.UploadAttachment(r.Context(), usecase.UploadAttachmentInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		return nil, err
	}

	return AttachmentResponse{
		Path:        ref.Path,
		Filename:    ref.Filename,
		ContentType: ref.ContentType,
		Size:        ref.Size,
	}, nil
}

func toSendResponse(receipt entity.Receipt) SendResponse {
	return SendResponse{
		Status:    receipt.Status,
		Provider:  receipt.Provider,
		MessageID: receipt.MessageID,
		msg:       receipt.Message,
	}
}

// groupResult keeps the per recipient report once any recipient was
// processed, with the status of the first failure.
func groupResult(report entity.GroupReport, err error) (any, error) {
	if err == nil {
		return toGroupResponse(report), nil
	}

	var gerr *goerror.Error
	if !errors.As(err, &gerr) || len(report.Outcomes) == 0 {
		return nil, err
	}

	resp := toGroupResponse(report)
	resp.status = gerr.StatusCode()
	resp.msg = gerr.Msg()
	return resp, nil
}
