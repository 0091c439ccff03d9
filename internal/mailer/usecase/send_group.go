package usecase

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
)

const msgInvalidRecipient = "is not a valid email address"

type (
	// SendMailToGroupInput sends Message once per address in Message.To.
	SendMailToGroupInput struct {
		Message entity.MailMessage
		Mode    entity.GroupMode `validate:"omitempty,oneof=stop_on_error continue_on_error"`
	}

	SendMailToGroupWithTemplateInput struct {
		Message entity.MailMessage
		View    entity.TemplateView
		Mode    entity.GroupMode `validate:"omitempty,oneof=stop_on_error continue_on_error"`
	}
)

func (s *Usecase) SendMailToGroup(ctx context.Context, in SendMailToGroupInput) (entity.GroupReport, error) {
	ctx, span := s.startSpan(ctx, "SendMailToGroup")
	defer span.End()

	// Recipients are validated one by one in sendGroup.
	check := in
	check.Message.To = nil
	if err := s.validator.Validate(check); err != nil {
		return entity.GroupReport{}, goerror.NewInvalidInput(err)
	}

	return s.sendGroup(ctx, "SendMailToGroup", in.Message, in.Mode)
}

func (s *Usecase) SendMailToGroupWithTemplate(ctx context.Context, in SendMailToGroupWithTemplateInput) (entity.GroupReport, error) {
	ctx, span := s.startSpan(ctx, "SendMailToGroupWithTemplate")
	defer span.End()

	// Recipients are validated one by one in sendGroup.
	check := in
	check.Message.To = nil
	if err := s.validator.Validate(check); err != nil {
		return entity.GroupReport{}, goerror.NewInvalidInput(err)
	}

	in.Message.HTML = RenderTemplate(in.View)

	return s.sendGroup(ctx, "SendMailToGroupWithTemplate", in.Message, in.Mode)
}

// sendGroup sends to each recipient in order. In stop_on_error mode the
// recipients after the first failure are reported as skipped and never
// attempted. The returned error wraps the first failure.
func (s *Usecase) sendGroup(ctx context.Context, title string, msg entity.MailMessage, mode entity.GroupMode) (entity.GroupReport, error) {
	if mode == "" {
		mode = entity.GroupModeStopOnError
	}

	recipients := lo.UniqBy(lo.Compact(msg.To), strings.ToLower)
	if len(recipients) == 0 {
		return entity.GroupReport{}, goerror.NewInvalidInput(nil, "to", "to must contain at least one recipient")
	}

	report := entity.GroupReport{Mode: mode}
	var firstErr error

	for i, to := range recipients {
		if firstErr != nil && mode == entity.GroupModeStopOnError {
			for _, rest := range recipients[i:] {
				report.Record(entity.RecipientOutcome{Recipient: rest, Status: entity.RecipientStatusSkipped})
			}
			break
		}

		one := msg.WithRecipient(to)
		if err := s.validator.Validate(one); err != nil {
			report.Record(entity.RecipientOutcome{Recipient: to, Status: entity.RecipientStatusFailed, Error: msgInvalidRecipient})
			if firstErr == nil {
				firstErr = goerror.NewInvalidInput(nil, "to", to+" "+msgInvalidRecipient)
			}
			continue
		}

		receipt, err := s.deliver(ctx, title, one)
		if err != nil {
			report.Record(entity.RecipientOutcome{Recipient: to, Status: entity.RecipientStatusFailed, Error: err.Error()})
			if firstErr == nil {
				firstErr = goerror.NewUpstream(err, "Failed to send email to "+to)
			}
			continue
		}

		report.Record(entity.RecipientOutcome{Recipient: to, Status: entity.RecipientStatusSent, MessageID: receipt.MessageID})
	}

	return report, firstErr
}

