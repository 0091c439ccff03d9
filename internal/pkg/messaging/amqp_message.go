package messaging

import (
	"context"
	"fmt"
	"sort"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpMessage struct {
	d      amqp.Delivery
	source string

	settleOnce
}

func newAMQPMessage(d amqp.Delivery, source string) *amqpMessage {
	return &amqpMessage{d: d, source: source}
}

func (m *amqpMessage) Body() []byte { return m.d.Body }

func (m *amqpMessage) Header(key string) string {
	return headerValue(m.Headers(), key)
}

func (m *amqpMessage) Headers() []Header {
	if len(m.d.Headers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(m.d.Headers))
	for k := range m.d.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]Header, 0, len(keys))
	for _, k := range keys {
		switch v := m.d.Headers[k].(type) {
		case string:
			headers = append(headers, Header{Key: k, Value: []byte(v)})
		case []byte:
			headers = append(headers, Header{Key: k, Value: v})
		default:
			headers = append(headers, Header{Key: k, Value: fmt.Appendf(nil, "%v", v)})
		}
	}
	return headers
}

func (m *amqpMessage) ID() string           { return m.d.MessageId }
func (m *amqpMessage) Source() string       { return m.source }
func (m *amqpMessage) Redelivered() bool    { return m.d.Redelivered }
func (m *amqpMessage) Timestamp() time.Time { return m.d.Timestamp }

func (m *amqpMessage) Ack(ctx context.Context) error {
	if first, err := m.claim(ctx); !first {
		return err
	}
	return m.d.Ack(false)
}

func (m *amqpMessage) Nack(ctx context.Context, requeue bool) error {
	if first, err := m.claim(ctx); !first {
		return err
	}
	return m.d.Nack(false, requeue)
}

func (m *amqpMessage) Metadata() map[string]any {
	return map[string]any{
		"delivery_tag": m.d.DeliveryTag,
		"redelivered":  m.d.Redelivered,
		"exchange":     m.d.Exchange,
		"routing_key":  m.d.RoutingKey,
		"consumer_tag": m.d.ConsumerTag,
	}
}
