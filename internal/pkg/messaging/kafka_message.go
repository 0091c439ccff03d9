package messaging

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	kafkaMessageIDHeader = "message-id"
	// kafkaRedeliveryHeader counts how often a record was produced again by Nack.
	kafkaRedeliveryHeader = "x-redelivery-count"
)

// kafkaMessage is one fetched record. Kafka has no per-record reject, so a
// requeue produces the record again at the tail of its topic and then
// commits the original offset.
type kafkaMessage struct {
	reader  *kafka.Reader
	requeue func(ctx context.Context, msg kafka.Message) error
	msg     kafka.Message
	source  string

	settleOnce
}

func (m *kafkaMessage) Body() []byte { return m.msg.Value }

func (m *kafkaMessage) Header(key string) string {
	for _, h := range m.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (m *kafkaMessage) Headers() []Header {
	out := make([]Header, 0, len(m.msg.Headers))
	for _, h := range m.msg.Headers {
		out = append(out, Header{Key: h.Key, Value: h.Value})
	}
	return out
}

// ID is the producer's message id, or topic/partition/offset without one.
func (m *kafkaMessage) ID() string {
	if id := m.Header(kafkaMessageIDHeader); id != "" {
		return id
	}
	return m.msg.Topic + "/" + strconv.Itoa(m.msg.Partition) + "/" + strconv.FormatInt(m.msg.Offset, 10)
}

func (m *kafkaMessage) Source() string { return m.source }

func (m *kafkaMessage) Redelivered() bool { return m.redeliveries() > 0 }

func (m *kafkaMessage) Timestamp() time.Time { return m.msg.Time }

func (m *kafkaMessage) redeliveries() int {
	n, _ := strconv.Atoi(m.Header(kafkaRedeliveryHeader))
	return n
}

func (m *kafkaMessage) Ack(ctx context.Context) error {
	if first, err := m.claim(ctx); !first {
		return err
	}
	return m.reader.CommitMessages(ctx, m.msg)
}

// Nack without requeue commits the offset and drops the record. With requeue
// the offset is committed only after the copy was written, so a failed
// write leaves the record for the next group member.
func (m *kafkaMessage) Nack(ctx context.Context, requeue bool) error {
	if first, err := m.claim(ctx); !first {
		return err
	}
	if requeue {
		if err := m.requeue(ctx, m.again()); err != nil {
			return err
		}
	}
	return m.reader.CommitMessages(ctx, m.msg)
}

// again copies the record for a produce call with the redelivery count raised.
func (m *kafkaMessage) again() kafka.Message {
	headers := make([]kafka.Header, 0, len(m.msg.Headers)+1)
	for _, h := range m.msg.Headers {
		if h.Key != kafkaRedeliveryHeader {
			headers = append(headers, h)
		}
	}
	headers = append(headers, kafka.Header{Key: kafkaRedeliveryHeader, Value: []byte(strconv.Itoa(m.redeliveries() + 1))})

	return kafka.Message{Key: m.msg.Key, Value: m.msg.Value, Headers: headers, Time: time.Now()}
}

func (m *kafkaMessage) Metadata() map[string]any {
	return map[string]any{
		"topic":        m.msg.Topic,
		"partition":    m.msg.Partition,
		"offset":       m.msg.Offset,
		"redeliveries": m.redeliveries(),
	}
}
