package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrNATSURLRequired is returned when the NATS server URL is missing.
var ErrNATSURLRequired = errors.New("pkgmessage: nats url is required")

// NATSConfig configures the JetStream driver.
type NATSConfig struct {
	URL string `mapstructure:"url"`
	// AckWait is how long JetStream waits for a settle before redelivering.
	AckWait time.Duration `mapstructure:"ack_wait"`
	// Options are passed to nats.Connect.
	Options []nats.Option `mapstructure:"-"`
}

// NATS is a Messaging implementation on NATS JetStream. Every queue maps to
// a file-backed stream holding exactly one subject, consumed by a durable
// pull consumer with explicit acks.
type NATS struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	ackWait time.Duration

	mu       sync.Mutex
	declared map[string]struct{}
	closed   bool
}

func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("pkgmessage: nats connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("pkgmessage: jetstream: %w", err)
	}

	ackWait := cfg.AckWait
	if ackWait <= 0 {
		ackWait = time.Minute
	}

	return &NATS{conn: conn, js: js, ackWait: ackWait, declared: make(map[string]struct{})}, nil
}

// streamName derives a stream name from a subject; stream names may not
// contain '.', '*' or '>'.
func streamName(subject string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(strings.ToUpper(subject))
}

// DeclareQueue creates the stream backing subject when it does not exist.
func (n *NATS) DeclareQueue(ctx context.Context, subject string) error {
	if subject == "" {
		return ErrDestinationRequired
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrClosed
	}
	if _, ok := n.declared[subject]; ok {
		return nil
	}

	_, err := n.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName(subject),
		Subjects:  []string{subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		return fmt.Errorf("pkgmessage: jetstream stream %q: %w", subject, err)
	}

	n.declared[subject] = struct{}{}
	return nil
}

func (n *NATS) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrDestinationRequired
	}

	nmsg := nats.NewMsg(destination)
	nmsg.Data = msg.Body
	for _, h := range msg.Headers {
		if h.Key != "" {
			nmsg.Header.Add(h.Key, string(h.Value))
		}
	}
	if msg.ContentType != "" {
		nmsg.Header.Set("Content-Type", msg.ContentType)
	}

	var pubOpts []jetstream.PublishOpt
	if msg.MessageID != "" {
		pubOpts = append(pubOpts, jetstream.WithMsgID(msg.MessageID))
	}

	ack, err := n.js.PublishMsg(ctx, nmsg, pubOpts...)
	if err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: jetstream publish: %w", err)
	}

	return PublishResult{MessageID: msg.MessageID, Sequence: ack.Sequence, Timestamp: time.Now()}, nil
}

// Consume binds a durable consumer named by WithGroup (default: the stream
// name) and hands messages to handler until ctx is done.
func (n *NATS) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrDestinationRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	if err := n.DeclareQueue(ctx, source); err != nil {
		return err
	}

	co := newConsumeOptions(opts...)
	concurrency := orDefault(co.concurrency, 1)
	durable := co.group
	if durable == "" {
		durable = streamName(source)
	}

	cons, err := n.js.CreateOrUpdateConsumer(ctx, streamName(source), jetstream.ConsumerConfig{
		Durable:       durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       n.ackWait,
		FilterSubject: source,
		MaxAckPending: orDefault(co.prefetch, concurrency),
	})
	if err != nil {
		return fmt.Errorf("pkgmessage: jetstream consumer: %w", err)
	}

	msgCh := make(chan jetstream.Msg)
	var wg sync.WaitGroup
	for range concurrency {
		wg.Go(func() {
			for m := range msgCh {
				//nolint:errcheck // handler outcome is settled on the message
				_ = handle(ctx, "nats", handler, newNATSMessage(m, source), co.autoAck)
			}
		})
	}

	cc, err := cons.Consume(func(m jetstream.Msg) {
		select {
		case msgCh <- m:
		case <-ctx.Done():
		}
	}, jetstream.PullMaxMessages(orDefault(co.prefetch, concurrency)))
	if err != nil {
		close(msgCh)
		wg.Wait()
		return fmt.Errorf("pkgmessage: jetstream consume: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-cc.Closed():
	}

	cc.Stop()
	close(msgCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	//nolint:errcheck // nothing to settle
	_ = handle(ctx, "nats", handler, nil, false)
	return ErrConsumerCancelled
}

func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	err := n.conn.Drain()
	n.conn.Close()
	return err
}
