// Package broker publishes billing domain events to RabbitMQ.
package broker
