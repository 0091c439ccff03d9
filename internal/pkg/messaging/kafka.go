package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
	ErrKafkaBrokersRequired = errors.New("pkgmessage: kafka brokers are required")
	// ErrKafkaGroupRequired is returned when Consume is called without WithGroup.
	ErrKafkaGroupRequired = errors.New("pkgmessage: kafka consumer group is required")
)

// KafkaConfig configures the Kafka driver. A queue maps to a topic and
// competing workers share a consumer group.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	// ClientID is sent to the brokers for their logs.
	ClientID string        `mapstructure:"client_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Kafka is a Messaging implementation on kafka-go. Ack commits the offset and
// Nack with requeue produces the record again before committing it.
type Kafka struct {
	brokers []string
	dialer  *kafka.Dialer

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers map[*kafka.Reader]struct{}
	closed  bool
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Kafka{
		brokers: append([]string{}, cfg.Brokers...),
		dialer:  &kafka.Dialer{ClientID: cfg.ClientID, Timeout: timeout, DualStack: true},
		writers: make(map[string]*kafka.Writer),
		readers: make(map[*kafka.Reader]struct{}),
	}, nil
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, ErrClosed
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: k.dialer.ClientID, DialTimeout: k.dialer.Timeout},
	}
	k.writers[topic] = w
	return w, nil
}

func (k *Kafka) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrDestinationRequired
	}

	w, err := k.writer(destination)
	if err != nil {
		return PublishResult{}, err
	}

	kmsg := kafka.Message{Key: []byte(msg.OrderingKey), Value: msg.Body, Time: time.Now()}
	if len(kmsg.Key) == 0 && msg.MessageID != "" {
		kmsg.Key = []byte(msg.MessageID)
	}
	for _, h := range msg.Headers {
		if h.Key != "" {
			kmsg.Headers = append(kmsg.Headers, kafka.Header{Key: h.Key, Value: h.Value})
		}
	}
	if msg.ContentType != "" {
		kmsg.Headers = append(kmsg.Headers, kafka.Header{Key: "content-type", Value: []byte(msg.ContentType)})
	}
	if msg.MessageID != "" {
		kmsg.Headers = append(kmsg.Headers, kafka.Header{Key: kafkaMessageIDHeader, Value: []byte(msg.MessageID)})
	}

	if err := w.WriteMessages(ctx, kmsg); err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: kafka publish: %w", err)
	}

	return PublishResult{MessageID: msg.MessageID, Timestamp: kmsg.Time}, nil
}

// Consume joins the consumer group named by WithGroup and hands messages to
// handler until ctx is done.
func (k *Kafka) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
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
	if co.group == "" {
		return ErrKafkaGroupRequired
	}
	concurrency := orDefault(co.concurrency, 1)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  co.group,
		Topic:    source,
		MaxBytes: 10e6,
		Dialer:   k.dialer,
	})
	if err := k.track(reader); err != nil {
		return errors.Join(err, reader.Close())
	}
	defer k.untrack(reader)

	requeue := func(ctx context.Context, m kafka.Message) error {
		w, err := k.writer(source)
		if err != nil {
			return err
		}
		if err := w.WriteMessages(ctx, m); err != nil {
			return fmt.Errorf("pkgmessage: kafka requeue: %w", err)
		}
		return nil
	}

	msgCh := make(chan kafka.Message)
	var wg sync.WaitGroup
	for range concurrency {
		wg.Go(func() {
			for m := range msgCh {
				//nolint:errcheck // handler outcome is settled on the message
				_ = handle(ctx, "kafka", handler, &kafkaMessage{reader: reader, requeue: requeue, msg: m, source: source}, co.autoAck)
			}
		})
	}

	var fetchErr error
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			fetchErr = err
			break
		}
		select {
		case msgCh <- m:
			continue
		case <-ctx.Done():
		}
		break
	}

	close(msgCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	//nolint:errcheck // nothing to settle
	_ = handle(ctx, "kafka", handler, nil, false)
	return errors.Join(ErrConsumerCancelled, fetchErr)
}

func (k *Kafka) track(r *kafka.Reader) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrClosed
	}
	k.readers[r] = struct{}{}
	return nil
}

func (k *Kafka) untrack(r *kafka.Reader) {
	k.mu.Lock()
	_, ok := k.readers[r]
	delete(k.readers, r)
	k.mu.Unlock()

	if ok {
		_ = r.Close()
	}
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	writers, readers := k.writers, k.readers
	k.writers, k.readers = nil, nil
	k.mu.Unlock()

	var err error
	for r := range readers {
		err = errors.Join(err, r.Close())
	}
	for _, w := range writers {
		err = errors.Join(err, w.Close())
	}
	return err
}
