// Package messaging publishes and consumes queue messages independently of
// the broker.
//
// Mail jobs only rely on the interfaces declared here, so the broker can be
// switched between RabbitMQ (AMQP 0-9-1), NATS JetStream, NSQ, Kafka and Google
// Pub/Sub through configuration. Delivery is at least once: handlers settle
// each message explicitly with Ack, or with Nack when the driver supports it.
package messaging
