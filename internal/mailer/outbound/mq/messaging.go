package mq

import (
	"context"
	"strconv"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/messaging"
	"github.com/shandysiswandi/gomailer/internal/shared/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

// DeclareQueue creates queue as durable on brokers that need declaration.
func (m *Messaging) DeclareQueue(ctx context.Context, queue string) error {
	declarer, ok := m.client.(messaging.Declarer)
	if !ok {
		return nil
	}

	ctx, span := m.ins.Tracer("mailer.outbound.mq").Start(ctx, "DeclareQueue")
	defer span.End()

	if err := declarer.DeclareQueue(ctx, queue); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// PublishJob publishes job as a persistent message and waits for the broker
// to accept it.
func (m *Messaging) PublishJob(ctx context.Context, queue string, job entity.QueueJob) (messaging.PublishResult, error) {
	ctx, span := m.ins.Tracer("mailer.outbound.mq").Start(ctx, "PublishJob")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.destination", queue),
		attribute.String("mailer.job_id", job.ID),
		attribute.Int("mailer.attempt", job.Attempt),
	)

	body, err := job.Encode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return messaging.PublishResult{}, err
	}

	cID := instrument.GetCorrelationID(ctx)
	res, err := m.client.Publish(ctx, queue, messaging.OutgoingMessage{
		Body:        body,
		ContentType: "application/json",
		MessageID:   job.ID + "." + strconv.Itoa(job.Attempt),
		Headers: []messaging.Header{
			{Key: event.HeaderCorrelationID, Value: []byte(cID)},
			{Key: event.HeaderJobID, Value: []byte(job.ID)},
			{Key: event.HeaderAttempt, Value: []byte(strconv.Itoa(job.Attempt))},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return messaging.PublishResult{}, err
	}

	return res, nil
}

// PublishDeadLetter publishes body unchanged to a dead-letter queue together
// with the reason it was rejected.
func (m *Messaging) PublishDeadLetter(ctx context.Context, queue string, body []byte, reason string) error {
	ctx, span := m.ins.Tracer("mailer.outbound.mq").Start(ctx, "PublishDeadLetter")
	defer span.End()

	span.SetAttributes(attribute.String("messaging.destination", queue))

	if err := m.DeclareQueue(ctx, queue); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	_, err := m.client.Publish(ctx, queue, messaging.OutgoingMessage{
		Body: body,
		Headers: []messaging.Header{
			{Key: event.HeaderCorrelationID, Value: []byte(instrument.GetCorrelationID(ctx))},
			{Key: event.HeaderDeathReason, Value: []byte(reason)},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
