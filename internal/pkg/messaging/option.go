package messaging

type consumeOptions struct {
	// handler goroutines per Consume call
	concurrency int
	// settle by handler result: nil acks, an error nacks with requeue
	autoAck bool
	// durable consumer name (JetStream) or consumer tag (AMQP)
	group string
	// NSQ channel
	channel string
	// Pub/Sub subscription id
	subscription string
	// unacknowledged messages the broker may push
	prefetch int
}

// ConsumeOption configures Consume.
type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	var co consumeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	return co
}

func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

// WithAutoAck makes the driver settle each message from the handler result
// when the handler did not settle it.
func WithAutoAck(autoAck bool) ConsumeOption {
	return func(o *consumeOptions) { o.autoAck = autoAck }
}

func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

func WithChannel(channel string) ConsumeOption {
	return func(o *consumeOptions) { o.channel = channel }
}

func WithSubscription(subscription string) ConsumeOption {
	return func(o *consumeOptions) { o.subscription = subscription }
}

// WithPrefetch limits how many unacknowledged messages the broker hands to
// this consumer.
func WithPrefetch(n int) ConsumeOption {
	return func(o *consumeOptions) { o.prefetch = n }
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
