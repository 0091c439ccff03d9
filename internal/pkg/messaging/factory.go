package messaging

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

const (
	DriverAMQP         = "amqp"
	DriverNATS         = "nats"
	DriverNSQ          = "nsq"
	DriverKafka        = "kafka"
	DriverGooglePubSub = "google-pubsub"
)

var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions mirrors the "messaging" config section. Only the block of
// the selected driver is read.
type FactoryOptions struct {
	AMQP   AMQPConfig   `mapstructure:"amqp"`
	NATS   NATSConfig   `mapstructure:"nats"`
	NSQ    NSQConfig    `mapstructure:"nsq"`
	PubSub PubSubConfig `mapstructure:"pubsub"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
}

type opener func(context.Context, FactoryOptions) (Messaging, error)

var drivers = map[string]opener{
	DriverAMQP: func(ctx context.Context, o FactoryOptions) (Messaging, error) { return NewAMQP(ctx, o.AMQP) },
	DriverNATS: func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewNATS(o.NATS) },
	DriverNSQ:  func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewNSQ(o.NSQ) },
	DriverKafka: func(_ context.Context, o FactoryOptions) (Messaging, error) {
		return NewKafka(o.Kafka)
	},
	DriverGooglePubSub: func(ctx context.Context, o FactoryOptions) (Messaging, error) {
		return NewPubSub(ctx, o.PubSub)
	},
}

// aliases are alternative names accepted in config.
var aliases = map[string]string{
	"rabbitmq":  DriverAMQP,
	"jetstream": DriverNATS,
	"pubsub":    DriverGooglePubSub,
}

// Drivers lists the canonical driver names.
func Drivers() []string {
	return slices.Sorted(maps.Keys(drivers))
}

// NewFromDriver connects the broker named by driver, case-insensitively.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Messaging, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}

	open, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q, want one of %v", ErrUnknownDriver, driver, Drivers())
	}
	return open(ctx, opts)
}
