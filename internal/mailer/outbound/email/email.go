package email

import (
	"context"
	"fmt"
	"maps"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type fileLoader interface {
	Load(ctx context.Context, ref string) ([]byte, string, error)
}

// Mail adapts the transport handle to the mailer entities.
type Mail struct {
	client mail.Mail
	files  fileLoader
	ins    instrument.Instrumentation
}

func New(client mail.Mail, files fileLoader, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, files: files, ins: ins}
}

func (m *Mail) Provider() string {
	return m.client.Provider().String()
}

func (m *Mail) Verify(ctx context.Context) error {
	ctx, span := m.ins.Tracer("mailer.outbound.email").Start(ctx, "Verify")
	defer span.End()

	if err := m.client.Verify(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (m *Mail) Send(ctx context.Context, msg entity.MailMessage) (mail.Receipt, error) {
	ctx, span := m.ins.Tracer("mailer.outbound.email").Start(ctx, "Send")
	defer span.End()

	span.SetAttributes(
		attribute.String("mail.provider", m.Provider()),
		attribute.Int("mail.recipients", len(msg.Recipients())),
	)

	out, err := m.toTransport(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return mail.Receipt{}, err
	}

	receipt, err := m.client.Send(ctx, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return mail.Receipt{}, err
	}

	span.SetAttributes(attribute.String("mail.message_id", receipt.MessageID))
	return receipt, nil
}

func (m *Mail) toTransport(ctx context.Context, msg entity.MailMessage) (mail.Message, error) {
	out := mail.Message{
		From:       msg.From,
		To:         msg.To,
		Cc:         msg.Cc,
		Bcc:        msg.Bcc,
		ReplyTo:    msg.ReplyTo,
		InReplyTo:  msg.InReplyTo,
		References: msg.References,
		Subject:    msg.Subject,
		HTML:       msg.HTML,
		Text:       msg.Text,
		Headers:    maps.Clone(msg.Headers),
		List:       maps.Clone(msg.List),
		MessageID:  msg.MessageID,
		Encoding:   msg.Encoding,
		Priority:   mail.Priority(msg.Priority),
	}
	if msg.Date != nil {
		out.Date = *msg.Date
	}
	if msg.DKIM != nil {
		out.DKIM = &mail.DKIM{
			DomainName:  msg.DKIM.DomainName,
			KeySelector: msg.DKIM.KeySelector,
			PrivateKey:  msg.DKIM.PrivateKey,
		}
	}

	for i, a := range msg.Attachments {
		file := mail.Attachment{Filename: a.Filename, ContentType: a.ContentType, ContentID: a.CID}

		if a.Path != "" {
			if m.files == nil {
				return mail.Message{}, fmt.Errorf("attachment %d: object storage is not configured", i)
			}
			content, contentType, err := m.files.Load(ctx, a.Path)
			if err != nil {
				return mail.Message{}, fmt.Errorf("attachment %d: %w", i, err)
			}
			file.Content = content
			if file.ContentType == "" {
				file.ContentType = contentType
			}
		} else {
			content, err := a.Bytes()
			if err != nil {
				return mail.Message{}, fmt.Errorf("attachment %d: %w", i, err)
			}
			file.Content = content
		}

		out.Attachments = append(out.Attachments, file)
	}

	return out, nil
}
