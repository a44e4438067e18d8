package events

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange        = "noghresod.events"
	OrderStatusRoutingKey = "order.status.v1"
	syncServiceName       = "sync-service-go"
)

func serviceQueue(routingKey string) string {
	return syncServiceName + "." + routingKey
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
