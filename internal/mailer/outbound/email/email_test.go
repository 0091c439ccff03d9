package email

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMail struct {
	sent      []mail.Message
	err       error
	verifyErr error
}

func (s *stubMail) Close() error                 { return nil }
func (s *stubMail) Provider() mail.Service       { return mail.ServiceResend }
func (s *stubMail) Verify(context.Context) error { return s.verifyErr }

func (s *stubMail) Send(_ context.Context, msg mail.Message) (mail.Receipt, error) {
	if s.err != nil {
		return mail.Receipt{}, s.err
	}
	s.sent = append(s.sent, msg)
	return mail.Receipt{Provider: mail.ServiceResend, MessageID: "re_1"}, nil
}

type stubLoader struct {
	files map[string][]byte
}

func (s stubLoader) Load(_ context.Context, ref string) ([]byte, string, error) {
	b, ok := s.files[ref]
	if !ok {
		return nil, "", errors.New("no such object")
	}
	return b, "application/pdf", nil
}

func TestMail_Send(t *testing.T) {
	// Arrange
	client := &stubMail{}
	loader := stubLoader{files: map[string][]byte{"mail/invoice.pdf": []byte("%PDF")}}
	m := New(client, loader, instrument.NewNoop())

	msg := entity.MailMessage{
		From:     "App <no-reply@example.com>",
		To:       entity.Addresses{"a@example.com"},
		Subject:  "Invoice",
		HTML:     "<p>hi</p>",
		Priority: "high",
		DKIM:     &entity.DKIM{DomainName: "example.com", KeySelector: "s1", PrivateKey: "pem"},
		Attachments: []entity.Attachment{
			{Filename: "a.txt", Content: base64.StdEncoding.EncodeToString([]byte("hello")), Encoding: "base64"},
			{Filename: "invoice.pdf", Path: "mail/invoice.pdf"},
		},
	}

	// Act
	receipt, err := m.Send(context.Background(), msg)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "re_1", receipt.MessageID)
	require.Len(t, client.sent, 1)
	got := client.sent[0]
	assert.Equal(t, []string{"a@example.com"}, got.To)
	assert.Equal(t, mail.PriorityHigh, got.Priority)
	assert.Equal(t, "s1", got.DKIM.KeySelector)
	require.Len(t, got.Attachments, 2)
	assert.Equal(t, []byte("hello"), got.Attachments[0].Content)
	assert.Equal(t, []byte("%PDF"), got.Attachments[1].Content)
	assert.Equal(t, "application/pdf", got.Attachments[1].ContentType)
}

func TestMail_Send_Errors(t *testing.T) {
	boom := errors.New("provider down")

	tests := []struct {
		name    string
		client  *stubMail
		files   fileLoader
		msg     entity.MailMessage
		wantErr error
	}{
		{
			name:    "transport error is returned as is",
			client:  &stubMail{err: boom},
			msg:     entity.MailMessage{To: entity.Addresses{"a@example.com"}},
			wantErr: boom,
		},
		{
			name:   "path without storage",
			client: &stubMail{},
			msg: entity.MailMessage{
				To:          entity.Addresses{"a@example.com"},
				Attachments: []entity.Attachment{{Path: "mail/x"}},
			},
		},
		{
			name:   "missing object",
			client: &stubMail{},
			files:  stubLoader{},
			msg: entity.MailMessage{
				To:          entity.Addresses{"a@example.com"},
				Attachments: []entity.Attachment{{Path: "mail/x"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.client, tt.files, instrument.NewNoop())

			_, err := m.Send(context.Background(), tt.msg)

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, tt.client.sent)
		})
	}
}

func TestMail_Verify(t *testing.T) {
	m := New(&stubMail{verifyErr: mail.ErrVerification}, nil, instrument.NewNoop())

	assert.ErrorIs(t, m.Verify(context.Background()), mail.ErrVerification)
	assert.Equal(t, "RESEND", m.Provider())
}
