package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	dest string
	msg  messaging.OutgoingMessage
	err  error
}

func (s *stubPublisher) Publish(_ context.Context, dest string, msg messaging.OutgoingMessage) (messaging.PublishResult, error) {
	if s.err != nil {
		return messaging.PublishResult{}, s.err
	}
	s.dest, s.msg = dest, msg
	return messaging.PublishResult{MessageID: msg.MessageID}, nil
}

type stubDeclarer struct {
	stubPublisher
	declared []string
}

func (s *stubDeclarer) DeclareQueue(_ context.Context, name string) error {
	s.declared = append(s.declared, name)
	return nil
}

func TestMessaging_PublishJob(t *testing.T) {
	// Arrange
	pub := &stubPublisher{}
	m := NewMessaging(pub, instrument.NewNoop())
	ctx := instrument.SetCorrelationID(context.Background(), "corr-1")
	job := entity.QueueJob{ID: "job-1", Attempt: 2, Message: entity.MailMessage{Subject: "Hi"}}

	// Act
	res, err := m.PublishJob(ctx, "mail", job)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "job-1.2", res.MessageID)
	assert.Equal(t, "mail", pub.dest)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.JSONEq(t, `{"id":"job-1","attempt":2,"enqueued_at":"0001-01-01T00:00:00Z","message":{"subject":"Hi"}}`, string(pub.msg.Body))
	assert.Equal(t, []messaging.Header{
		{Key: "cID", Value: []byte("corr-1")},
		{Key: "x-job-id", Value: []byte("job-1")},
		{Key: "x-attempt", Value: []byte("2")},
	}, pub.msg.Headers)
}

func TestMessaging_PublishJob_Error(t *testing.T) {
	boom := errors.New("channel closed")
	m := NewMessaging(&stubPublisher{err: boom}, instrument.NewNoop())

	_, err := m.PublishJob(context.Background(), "mail", entity.QueueJob{ID: "job-1"})

	assert.ErrorIs(t, err, boom)
}

func TestMessaging_DeclareQueue(t *testing.T) {
	dec := &stubDeclarer{}
	require.NoError(t, NewMessaging(dec, instrument.NewNoop()).DeclareQueue(context.Background(), "mail"))
	assert.Equal(t, []string{"mail"}, dec.declared)

	assert.NoError(t, NewMessaging(&stubPublisher{}, instrument.NewNoop()).DeclareQueue(context.Background(), "mail"))
}

func TestMessaging_PublishDeadLetter(t *testing.T) {
	// Arrange
	dec := &stubDeclarer{}
	m := NewMessaging(dec, instrument.NewNoop())

	// Act
	err := m.PublishDeadLetter(context.Background(), "mail.dlq", []byte("{bad"), "undecodable")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"mail.dlq"}, dec.declared)
	assert.Equal(t, "mail.dlq", dec.dest)
	assert.Equal(t, []byte("{bad"), dec.msg.Body)
	assert.Equal(t, "undecodable", string(dec.msg.Headers[1].Value))
}
