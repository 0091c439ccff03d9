package messaging

import (
	"context"
	"sort"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

type natsMessage struct {
	msg    jetstream.Msg
	source string

	settleOnce
}

func newNATSMessage(msg jetstream.Msg, source string) *natsMessage {
	return &natsMessage{msg: msg, source: source}
}

func (m *natsMessage) Body() []byte { return m.msg.Data() }

func (m *natsMessage) Header(key string) string {
	return m.msg.Headers().Get(key)
}

func (m *natsMessage) Headers() []Header {
	h := m.msg.Headers()
	if len(h) == 0 {
		return nil
	}

	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var headers []Header
	for _, k := range keys {
		for _, v := range h[k] {
			headers = append(headers, Header{Key: k, Value: []byte(v)})
		}
	}
	return headers
}

func (m *natsMessage) ID() string {
	return m.msg.Headers().Get(jetstream.MsgIDHeader)
}

func (m *natsMessage) Source() string { return m.source }

func (m *natsMessage) Redelivered() bool {
	md, err := m.msg.Metadata()
	return err == nil && md.NumDelivered > 1
}

func (m *natsMessage) Timestamp() time.Time {
	md, err := m.msg.Metadata()
	if err != nil {
		return time.Time{}
	}
	return md.Timestamp
}

func (m *natsMessage) Ack(ctx context.Context) error {
	if first, err := m.claim(ctx); !first {
		return err
	}
	return m.msg.Ack()
}

// Nack asks for redelivery, or terminates the message when requeue is false.
func (m *natsMessage) Nack(ctx context.Context, requeue bool) error {
	if first, err := m.claim(ctx); !first {
		return err
	}
	if requeue {
		return m.msg.Nak()
	}
	return m.msg.Term()
}

func (m *natsMessage) Metadata() map[string]any {
	meta := map[string]any{"subject": m.msg.Subject()}
	if md, err := m.msg.Metadata(); err == nil {
		meta["stream"] = md.Stream
		meta["consumer"] = md.Consumer
		meta["sequence_stream"] = md.Sequence.Stream
		meta["num_delivered"] = md.NumDelivered
		meta["num_pending"] = md.NumPending
	}
	return meta
}
