package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnsupported is returned when the selected broker lacks a feature.
	ErrUnsupported = errors.New("pkgmessage: unsupported operation")

	// ErrConsumerCancelled is returned by Consume when the broker closed the
	// delivery stream while the caller's context was still alive.
	ErrConsumerCancelled = errors.New("pkgmessage: consumer cancelled by broker")

	// ErrDestinationRequired is returned when a queue, subject or topic name is empty.
	ErrDestinationRequired = errors.New("pkgmessage: destination is required")

	// ErrHandlerRequired is returned when Consume is called with a nil handler.
	ErrHandlerRequired = errors.New("pkgmessage: handler is required")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("pkgmessage: client closed")
)

// Messaging is a broker client able to publish and consume.
type Messaging interface {
	io.Closer

	Publisher
	Consumer
}

// Publisher sends a message to a queue, subject or topic.
type Publisher interface {
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

// Consumer receives messages from a queue, subject or subscription until ctx
// is done. It returns ctx.Err() on cancellation.
type Consumer interface {
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Declarer is implemented by brokers that need a destination created before
// use. Declaring an existing destination is a no-op.
type Declarer interface {
	DeclareQueue(ctx context.Context, name string) error
}

// Handler processes one delivery.
//
// msg is nil when the broker ended the delivery stream without a message;
// there is nothing to settle in that case. Unless WithAutoAck is set the
// handler must settle msg itself.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to publish. Publishers always request
// persistent delivery where the broker distinguishes it.
type OutgoingMessage struct {
	Body        []byte
	Headers     []Header
	ContentType string
	// MessageID lets the broker and consumers deduplicate.
	MessageID string
	// OrderingKey is honoured by Google Pub/Sub only.
	OrderingKey string
}

type Header struct {
	Key   string
	Value []byte
}

// PublishResult carries what the broker reported for an accepted message.
type PublishResult struct {
	MessageID string
	Sequence  uint64
	Timestamp time.Time
}

// Message is a received delivery.
type Message interface {
	Body() []byte
	// Header returns the first value stored under key, or "".
	Header(key string) string
	Headers() []Header
	ID() string
	// Source is the queue, subject or subscription the message came from.
	Source() string
	// Redelivered reports whether the broker delivered this message before.
	Redelivered() bool
	Timestamp() time.Time

	// Ack removes the message from the broker. Settling twice is a no-op.
	Ack(ctx context.Context) error
}

// Nackable is implemented by deliveries that can be rejected. With requeue
// the broker delivers the message again, otherwise it is dropped or routed to
// a broker-side dead-letter target.
type Nackable interface {
	Nack(ctx context.Context, requeue bool) error
}

// MetadataCarrier exposes broker specific delivery data for logging.
type MetadataCarrier interface {
	Metadata() map[string]any
}

func headerValue(headers []Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
