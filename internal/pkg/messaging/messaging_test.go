package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acks     int
	nacks    int
	requeued bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error { f.acks++; return nil }

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeued = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(uint64, bool) error { return nil }

func newDelivery(ack *fakeAcknowledger) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  7,
		MessageId:    "job-1",
		Redelivered:  true,
		Timestamp:    time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Headers:      amqp.Table{"x-attempt": int32(2), "cID": "corr-1"},
		Body:         []byte(`{"id":"job-1"}`),
	}
}

func TestAMQPMessage_Accessors(t *testing.T) {
	msg := newAMQPMessage(newDelivery(&fakeAcknowledger{}), "mail.outbound")

	assert.Equal(t, []byte(`{"id":"job-1"}`), msg.Body())
	assert.Equal(t, "job-1", msg.ID())
	assert.Equal(t, "mail.outbound", msg.Source())
	assert.True(t, msg.Redelivered())
	assert.Equal(t, "corr-1", msg.Header("cID"))
	assert.Equal(t, "2", msg.Header("x-attempt"))
	assert.Equal(t, []Header{
		{Key: "cID", Value: []byte("corr-1")},
		{Key: "x-attempt", Value: []byte("2")},
	}, msg.Headers())
	assert.Equal(t, uint64(7), msg.Metadata()["delivery_tag"])
}

func TestAMQPMessage_SettleOnce(t *testing.T) {
	ack := &fakeAcknowledger{}
	msg := newAMQPMessage(newDelivery(ack), "q")

	require.NoError(t, msg.Nack(context.Background(), true))
	require.NoError(t, msg.Ack(context.Background()))
	require.NoError(t, msg.Nack(context.Background(), false))

	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeued)
	assert.True(t, msg.settled())
}

func TestAMQPMessage_CanceledContext(t *testing.T) {
	ack := &fakeAcknowledger{}
	msg := newAMQPMessage(newDelivery(ack), "q")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, msg.Ack(ctx), context.Canceled)
	assert.Equal(t, 0, ack.acks)
	assert.False(t, msg.settled())
}

func TestHandle(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		autoAck   bool
		handler   Handler
		wantErr   error
		wantAcks  int
		wantNacks int
	}{
		{
			name:     "auto ack on success",
			autoAck:  true,
			handler:  func(context.Context, Message) error { return nil },
			wantAcks: 1,
		},
		{
			name:      "auto nack on error",
			autoAck:   true,
			handler:   func(context.Context, Message) error { return boom },
			wantNacks: 1,
		},
		{
			name:    "manual leaves message alone",
			handler: func(context.Context, Message) error { return boom },
			wantErr: boom,
		},
		{
			name:    "handler settled first",
			autoAck: true,
			handler: func(ctx context.Context, m Message) error {
				return errors.Join(m.Ack(ctx), boom)
			},
			wantErr:  boom,
			wantAcks: 1,
		},
		{
			name:      "panic is recovered and nacked",
			autoAck:   true,
			handler:   func(context.Context, Message) error { panic("bad payload") },
			wantNacks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			ack := &fakeAcknowledger{}
			msg := newAMQPMessage(newDelivery(ack), "q")

			// Act
			err := handle(context.Background(), "amqp", tt.handler, msg, tt.autoAck)

			// Assert
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantAcks, ack.acks)
			assert.Equal(t, tt.wantNacks, ack.nacks)
		})
	}
}

func TestHandle_NilMessage(t *testing.T) {
	var got Message = &amqpMessage{}

	err := handle(context.Background(), "amqp", func(_ context.Context, m Message) error {
		got = m
		return nil
	}, nil, true)

	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewFromDriver(t *testing.T) {
	_, err := NewFromDriver(context.Background(), "sqs", FactoryOptions{})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = NewFromDriver(context.Background(), DriverKafka, FactoryOptions{})
	assert.ErrorIs(t, err, ErrKafkaBrokersRequired)

	_, err = NewFromDriver(context.Background(), "AMQP", FactoryOptions{})
	assert.ErrorIs(t, err, ErrAMQPURLRequired)

	_, err = NewFromDriver(context.Background(), DriverNATS, FactoryOptions{})
	assert.ErrorIs(t, err, ErrNATSURLRequired)

	_, err = NewFromDriver(context.Background(), DriverGooglePubSub, FactoryOptions{})
	assert.ErrorIs(t, err, ErrPubSubProjectIDRequired)

	_, err = NewFromDriver(context.Background(), " RabbitMQ ", FactoryOptions{})
	assert.ErrorIs(t, err, ErrAMQPURLRequired)

	_, err = NewFromDriver(context.Background(), "pubsub", FactoryOptions{})
	assert.ErrorIs(t, err, ErrPubSubProjectIDRequired)

	assert.Equal(t, []string{"amqp", "google-pubsub", "kafka", "nats", "nsq"}, Drivers())
}

func TestNSQ_ConsumeValidation(t *testing.T) {
	n, err := NewNSQ(NSQConfig{})
	require.NoError(t, err)
	defer n.Close()

	ctx := context.Background()
	noop := func(context.Context, Message) error { return nil }

	_, err = n.Publish(ctx, "mail", OutgoingMessage{Body: []byte("x")})
	assert.ErrorIs(t, err, ErrNSQProducerAddrRequired)
	assert.ErrorIs(t, n.Consume(ctx, "", noop), ErrDestinationRequired)
	assert.ErrorIs(t, n.Consume(ctx, "mail", nil), ErrHandlerRequired)
	assert.ErrorIs(t, n.Consume(ctx, "mail", noop), ErrNSQConsumerAddrsRequired)
}

func TestStreamName(t *testing.T) {
	assert.Equal(t, "MAIL_OUTBOUND_DLQ", streamName("mail.outbound.dlq"))
	assert.Equal(t, "MAIL__", streamName("mail.>"))
}

func TestKafka_ConsumeValidation(t *testing.T) {
	k, err := NewKafka(KafkaConfig{Brokers: []string{"127.0.0.1:9092"}})
	require.NoError(t, err)
	defer k.Close()

	ctx := context.Background()
	noop := func(context.Context, Message) error { return nil }

	assert.ErrorIs(t, k.Consume(ctx, "", noop), ErrDestinationRequired)
	assert.ErrorIs(t, k.Consume(ctx, "mail", nil), ErrHandlerRequired)
	assert.ErrorIs(t, k.Consume(ctx, "mail", noop), ErrKafkaGroupRequired)

	require.NoError(t, k.Close())
	_, err = k.Publish(ctx, "mail", OutgoingMessage{Body: []byte("x")})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestKafkaMessage_Requeue(t *testing.T) {
	// Arrange
	var produced []kafka.Message
	unreachable := errors.New("broker unreachable")
	msg := &kafkaMessage{
		requeue: func(_ context.Context, m kafka.Message) error {
			produced = append(produced, m)
			return unreachable
		},
		msg: kafka.Message{
			Topic:     "mail",
			Partition: 2,
			Offset:    41,
			Key:       []byte("job-1"),
			Value:     []byte(`{"id":"job-1"}`),
			Headers:   []kafka.Header{{Key: "cID", Value: []byte("corr-1")}, {Key: kafkaRedeliveryHeader, Value: []byte("1")}},
		},
		source: "mail",
	}

	// Act
	err := msg.Nack(context.Background(), true)

	// Assert
	assert.ErrorIs(t, err, unreachable)
	assert.True(t, msg.settled())
	assert.True(t, msg.Redelivered())
	assert.Equal(t, "mail/2/41", msg.ID())
	require.Len(t, produced, 1)
	assert.Equal(t, []byte("job-1"), produced[0].Key)
	assert.Empty(t, produced[0].Topic)
	assert.Equal(t, []kafka.Header{
		{Key: "cID", Value: []byte("corr-1")},
		{Key: kafkaRedeliveryHeader, Value: []byte("2")},
	}, produced[0].Headers)
}
