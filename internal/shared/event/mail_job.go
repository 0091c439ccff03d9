package event

// MailQueueDestination is the queue used when a request does not name one.
const MailQueueDestination string = "mail"

// MailQueueConsumerGroup names the competing consumers on brokers that need a
// group (Kafka, JetStream durable, NSQ channel, Pub/Sub subscription).
const MailQueueConsumerGroup string = "gomailer_worker"

// MailDeadLetterSuffix is appended to a queue name to form its dead-letter queue.
const MailDeadLetterSuffix string = ".dlq"

// Headers set on every published mail job.
const (
	HeaderCorrelationID string = "cID"
	HeaderJobID         string = "x-job-id"
	HeaderAttempt       string = "x-attempt"
	// HeaderDeathReason is set on messages published to a dead-letter queue.
	HeaderDeathReason string = "x-death-reason"
)
