package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsecase_SendMail(t *testing.T) {
	// Arrange
	f := newFixture(t, "")

	// Act
	receipt, err := f.uc.SendMail(context.Background(), SendMailInput{Message: validMessage()})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, entity.Receipt{
		Status:    http.StatusOK,
		Message:   "Email sent successfully",
		Provider:  "SMTP",
		MessageID: "<id-a@example.com>",
	}, receipt)
	assert.Equal(t, 1, f.mail.calls)
}

func TestUsecase_SendMail_Failure(t *testing.T) {
	// Arrange
	f := newFixture(t, "")
	f.mail.err = errors.New("535 authentication failed")

	// Act
	_, err := f.uc.SendMail(context.Background(), SendMailInput{Message: validMessage()})

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrSend)
	assert.Equal(t, goerror.CodeUpstream, goerror.CodeOf(err))

	var sendErr *entity.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "SMTP", sendErr.Provider)
	assert.Equal(t, "auth", sendErr.Code)
	assert.False(t, sendErr.Temporary)
	assert.Equal(t, "Welcome", sendErr.Message.Subject)
	assert.Contains(t, sendErr.Error(), "535 authentication failed")
	assert.Equal(t, 1, f.mail.calls)
}

func TestUsecase_SendMail_Invalid(t *testing.T) {
	tests := []struct {
		name string
		msg  entity.MailMessage
	}{
		{name: "no recipients", msg: entity.MailMessage{From: "a@example.com", Subject: "x"}},
		{name: "bad address", msg: entity.MailMessage{To: entity.Addresses{"not-an-address"}}},
		{name: "bad priority", msg: entity.MailMessage{To: entity.Addresses{"a@example.com"}, Priority: "urgent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")

			_, err := f.uc.SendMail(context.Background(), SendMailInput{Message: tt.msg})

			assert.Equal(t, goerror.CodeInvalidInput, goerror.CodeOf(err))
			assert.Zero(t, f.mail.calls)
		})
	}
}

func TestUsecase_SendMailWithTemplate(t *testing.T) {
	// Arrange
	f := newFixture(t, "")
	msg := validMessage()
	msg.HTML = "<p>replaced</p>"

	// Act
	_, err := f.uc.SendMailWithTemplate(context.Background(), SendMailWithTemplateInput{Message: msg, View: testView()})

	// Assert
	require.NoError(t, err)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, RenderTemplate(testView()), f.mail.sent[0].HTML)
	assert.Equal(t, "hello", f.mail.sent[0].Text)
}

func TestUsecase_VerifyTransport(t *testing.T) {
	f := newFixture(t, "")
	assert.NoError(t, f.uc.VerifyTransport(context.Background()))

	f.mail.err = errors.New("dial tcp: connection refused")
	assert.Error(t, f.uc.VerifyTransport(context.Background()))
}
