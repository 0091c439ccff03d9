package messaging

import (
	"context"
	"time"

	nsq "github.com/nsqio/go-nsq"
)

// nsqMessage is one delivery from an NSQ channel. NSQ carries no headers,
// so correlation data only survives inside the body.
type nsqMessage struct {
	topic string
	msg   *nsq.Message

	settleOnce
}

func (m *nsqMessage) Body() []byte         { return m.msg.Body }
func (m *nsqMessage) Header(string) string { return "" }
func (m *nsqMessage) Headers() []Header    { return nil }
func (m *nsqMessage) Source() string       { return m.topic }
func (m *nsqMessage) Redelivered() bool    { return m.msg.Attempts > 1 }
func (m *nsqMessage) Timestamp() time.Time { return time.Unix(0, m.msg.Timestamp) }

// ID is the nsqd message id, already 16 hex characters on the wire.
func (m *nsqMessage) ID() string { return string(m.msg.ID[:]) }

func (m *nsqMessage) Ack(ctx context.Context) error {
	if first, err := m.claim(ctx); !first {
		return err
	}
	m.msg.Finish()
	return nil
}

// Nack with requeue hands the delay to the consumer's backoff, which grows
// with the attempt count. Without requeue the message is finished: NSQ has
// no reject.
func (m *nsqMessage) Nack(ctx context.Context, requeue bool) error {
	if first, err := m.claim(ctx); !first {
		return err
	}
	if !requeue {
		m.msg.Finish()
		return nil
	}
	m.msg.Requeue(-1)
	return nil
}

func (m *nsqMessage) Metadata() map[string]any {
	return map[string]any{
		"attempts":     m.msg.Attempts,
		"nsqd_address": m.msg.NSQDAddress,
	}
}
