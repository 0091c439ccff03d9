package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
)

var (
	// ErrAMQPURLRequired is returned when no broker URL is configured.
	ErrAMQPURLRequired = errors.New("pkgmessage: amqp url is required")
	// ErrAMQPNotConfirmed is returned when the broker nacks a publish.
	ErrAMQPNotConfirmed = errors.New("pkgmessage: amqp publish not confirmed")
)

// AMQPConfig configures the RabbitMQ driver.
type AMQPConfig struct {
	URL string `mapstructure:"url"`
	// Exchange used for publishing. Empty means the default exchange, which
	// routes by queue name.
	Exchange string `mapstructure:"exchange"`
	// ConnectionName is shown in the RabbitMQ management UI.
	ConnectionName string        `mapstructure:"connection_name"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	// ConnectRetries bounds reconnect attempts per operation.
	ConnectRetries uint64        `mapstructure:"connect_retries"`
	ConnectBackoff time.Duration `mapstructure:"connect_backoff"`
}

func (c AMQPConfig) withDefaults() AMQPConfig {
	if c.Heartbeat <= 0 {
		c.Heartbeat = 10 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 30 * time.Second
	}
	if c.ConnectBackoff <= 0 {
		c.ConnectBackoff = 200 * time.Millisecond
	}
	if c.ConnectRetries == 0 {
		c.ConnectRetries = 5
	}
	return c
}

// AMQP is a Messaging implementation for RabbitMQ.
//
// Queues are declared durable, publishes are persistent and wait for a
// publisher confirm, and consumers always use manual acknowledgement. A
// dropped connection is re-dialled on the next operation.
type AMQP struct {
	cfg AMQPConfig

	mu       sync.Mutex
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	declared map[string]struct{}
	closed   bool
}

// NewAMQP connects to the broker.
func NewAMQP(ctx context.Context, cfg AMQPConfig) (*AMQP, error) {
	if cfg.URL == "" {
		return nil, ErrAMQPURLRequired
	}

	a := &AMQP{cfg: cfg.withDefaults(), declared: make(map[string]struct{})}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.connection(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// connection returns the live connection, dialling when needed. a.mu must be held.
func (a *AMQP) connection(ctx context.Context) (*amqp.Connection, error) {
	if a.closed {
		return nil, ErrClosed
	}
	if a.conn != nil && !a.conn.IsClosed() {
		return a.conn, nil
	}

	a.pubCh = nil
	a.declared = make(map[string]struct{})

	b := retry.NewFibonacci(a.cfg.ConnectBackoff)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxRetries(a.cfg.ConnectRetries, b)

	var conn *amqp.Connection
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		c, err := amqp.DialConfig(a.cfg.URL, amqp.Config{
			Heartbeat:  a.cfg.Heartbeat,
			Locale:     "en_US",
			Dial:       amqp.DefaultDial(a.cfg.DialTimeout),
			Properties: amqp.Table{"connection_name": a.cfg.ConnectionName},
		})
		if err != nil {
			slog.WarnContext(ctx, "amqp dial failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pkgmessage: amqp connect: %w", err)
	}

	a.conn = conn
	return conn, nil
}

// publishChannel returns the confirm-mode channel shared by publishes. a.mu must be held.
func (a *AMQP) publishChannel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := a.connection(ctx)
	if err != nil {
		return nil, err
	}
	if a.pubCh != nil && !a.pubCh.IsClosed() {
		return a.pubCh, nil
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("pkgmessage: amqp channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return nil, errors.Join(fmt.Errorf("pkgmessage: amqp confirm mode: %w", err), ch.Close())
	}

	a.pubCh = ch
	return ch, nil
}

// DeclareQueue declares name as a durable queue.
func (a *AMQP) DeclareQueue(ctx context.Context, name string) error {
	if name == "" {
		return ErrDestinationRequired
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.declared[name]; ok {
		return nil
	}

	conn, err := a.connection(ctx)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("pkgmessage: amqp channel: %w", err)
	}
	defer ch.Close()

	if err := declareDurable(ch, name); err != nil {
		return err
	}

	a.declared[name] = struct{}{}
	return nil
}

func declareDurable(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("pkgmessage: amqp declare %q: %w", name, err)
	}
	return nil
}

// Publish sends msg to the queue named destination and waits for the
// broker to confirm it.
func (a *AMQP) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrDestinationRequired
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ch, err := a.publishChannel(ctx)
	if err != nil {
		return PublishResult{}, err
	}

	headers := make(amqp.Table, len(msg.Headers))
	for _, h := range msg.Headers {
		if h.Key != "" {
			headers[h.Key] = string(h.Value)
		}
	}

	now := time.Now()
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, a.cfg.Exchange, destination, false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Timestamp:    now,
		Body:         msg.Body,
	})
	if err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: amqp publish: %w", err)
	}

	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: amqp confirm: %w", err)
	}
	if !ok {
		return PublishResult{}, ErrAMQPNotConfirmed
	}

	return PublishResult{MessageID: msg.MessageID, Sequence: dc.DeliveryTag, Timestamp: now}, nil
}

// Consume declares source, then delivers its messages to handler until ctx
// is done. When the broker closes the stream first, handler is called once
// with a nil message and ErrConsumerCancelled is returned.
func (a *AMQP) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrDestinationRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	co := newConsumeOptions(opts...)
	concurrency := orDefault(co.concurrency, 1)

	ch, err := a.consumeChannel(ctx, source, orDefault(co.prefetch, concurrency))
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveries, err := ch.ConsumeWithContext(ctx, source, co.group, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("pkgmessage: amqp consume: %w", err)
	}

	var wg sync.WaitGroup
	for range concurrency {
		wg.Go(func() {
			for d := range deliveries {
				//nolint:errcheck // handler outcome is settled on the message
				_ = handle(ctx, "amqp", handler, newAMQPMessage(d, source), co.autoAck)
			}
		})
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	//nolint:errcheck // nothing to settle
	_ = handle(ctx, "amqp", handler, nil, false)
	return ErrConsumerCancelled
}

func (a *AMQP) consumeChannel(ctx context.Context, source string, prefetch int) (*amqp.Channel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	conn, err := a.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("pkgmessage: amqp channel: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, errors.Join(fmt.Errorf("pkgmessage: amqp qos: %w", err), ch.Close())
	}
	if err := declareDurable(ch, source); err != nil {
		return nil, errors.Join(err, ch.Close())
	}

	a.declared[source] = struct{}{}
	return ch, nil
}

// Close closes the publish channel and the connection.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var err error
	if a.pubCh != nil && !a.pubCh.IsClosed() {
		err = a.pubCh.Close()
	}
	if a.conn != nil && !a.conn.IsClosed() {
		err = errors.Join(err, a.conn.Close())
	}
	return err
}
