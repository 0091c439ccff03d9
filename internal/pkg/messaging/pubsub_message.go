package messaging

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/pubsub/v2"
)

// pubSubMessageIDAttr keeps the publisher's id, since Pub/Sub assigns its own.
const pubSubMessageIDAttr = "message_id"

type pubSubMessage struct {
	source string
	msg    *pubsub.Message

	settleOnce
}

func newPubSubMessage(source string, msg *pubsub.Message) *pubSubMessage {
	return &pubSubMessage{source: source, msg: msg}
}

func (m *pubSubMessage) Body() []byte { return m.msg.Data }

func (m *pubSubMessage) Header(key string) string { return m.msg.Attributes[key] }

func (m *pubSubMessage) Headers() []Header {
	if len(m.msg.Attributes) == 0 {
		return nil
	}

	keys := make([]string, 0, len(m.msg.Attributes))
	for k := range m.msg.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, Header{Key: k, Value: []byte(m.msg.Attributes[k])})
	}
	return headers
}

func (m *pubSubMessage) ID() string {
	if id := m.msg.Attributes[pubSubMessageIDAttr]; id != "" {
		return id
	}
	return m.msg.ID
}

func (m *pubSubMessage) Source() string { return m.source }

func (m *pubSubMessage) Redelivered() bool {
	return m.msg.DeliveryAttempt != nil && *m.msg.DeliveryAttempt > 1
}

func (m *pubSubMessage) Timestamp() time.Time { return m.msg.PublishTime }

func (m *pubSubMessage) Ack(ctx context.Context) error {
	if first, err := m.claim(ctx); !first {
		return err
	}
	m.msg.Ack()
	return nil
}

// Nack asks for redelivery. Pub/Sub cannot reject, so a Nack without requeue
// acks and relies on the caller having dead-lettered the payload.
func (m *pubSubMessage) Nack(ctx context.Context, requeue bool) error {
	if first, err := m.claim(ctx); !first {
		return err
	}
	if requeue {
		m.msg.Nack()
	} else {
		m.msg.Ack()
	}
	return nil
}

func (m *pubSubMessage) Metadata() map[string]any {
	meta := map[string]any{
		"pubsub_id":    m.msg.ID,
		"ordering_key": m.msg.OrderingKey,
	}
	if m.msg.DeliveryAttempt != nil {
		meta["delivery_attempt"] = *m.msg.DeliveryAttempt
	}
	return meta
}
