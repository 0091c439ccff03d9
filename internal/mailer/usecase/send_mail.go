package usecase

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
	"github.com/shandysiswandi/gomailer/internal/pkg/mail"
)

const msgEmailSent = "Email sent successfully"

type (
	SendMailInput struct {
		Message entity.MailMessage
	}

	SendMailWithTemplateInput struct {
		Message entity.MailMessage
		View    entity.TemplateView
	}
)

func (s *Usecase) SendMail(ctx context.Context, in SendMailInput) (entity.Receipt, error) {
	ctx, span := s.startSpan(ctx, "SendMail")
	defer span.End()

	return s.sendOne(ctx, "SendMail", in.Message)
}

func (s *Usecase) SendMailWithTemplate(ctx context.Context, in SendMailWithTemplateInput) (entity.Receipt, error) {
	ctx, span := s.startSpan(ctx, "SendMailWithTemplate")
	defer span.End()

	in.Message.HTML = RenderTemplate(in.View)

	return s.sendOne(ctx, "SendMailWithTemplate", in.Message)
}

func (s *Usecase) sendOne(ctx context.Context, title string, msg entity.MailMessage) (entity.Receipt, error) {
	if err := s.validateMessage(msg); err != nil {
		return entity.Receipt{}, err
	}

	receipt, err := s.deliver(ctx, title, msg)
	if err != nil {
		return entity.Receipt{}, goerror.NewUpstream(err, "Failed to send email")
	}

	return entity.Receipt{
		Status:    http.StatusOK,
		Message:   msgEmailSent,
		Provider:  receipt.Provider.String(),
		MessageID: receipt.MessageID,
	}, nil
}

func (s *Usecase) validateMessage(msg entity.MailMessage) error {
	if err := s.validator.Validate(msg); err != nil {
		return goerror.NewInvalidInput(err)
	}
	if len(msg.Recipients()) == 0 {
		return goerror.NewInvalidInput(nil, "to", "to must contain at least one recipient")
	}
	return nil
}

// deliver makes exactly one transport submission. Failures come back as
// *entity.SendError.
func (s *Usecase) deliver(ctx context.Context, title string, msg entity.MailMessage) (mail.Receipt, error) {
	provider := s.repoMail.Provider()

	start := s.clock.Now()
	receipt, err := s.repoMail.Send(ctx, msg)
	s.metrics.ObserveSend(provider, s.clock.Now().Sub(start), err)

	if err != nil {
		diag := mail.Diagnose(err)
		slog.ErrorContext(ctx, "failed to send email",
			"title", title,
			"code", diag.Code,
			"message", err.Error(),
			"http_status", http.StatusBadGateway,
			"provider", provider,
			"temporary", diag.Temporary,
		)
		return mail.Receipt{}, &entity.SendError{
			Message:   msg,
			Provider:  provider,
			Code:      diag.Code,
			Temporary: diag.Temporary,
			Err:       err,
		}
	}

	slog.InfoContext(ctx, "email sent",
		"title", title,
		"code", "ok",
		"message", msgEmailSent,
		"http_status", http.StatusOK,
		"provider", provider,
		"message_id", receipt.MessageID,
	)
	return receipt, nil
}
