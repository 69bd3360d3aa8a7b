package mq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

func Dial(url string) (*amqp.Connection, error) {
	return amqp.Dial(url)
}

// DeclareExchange sets up the single topic exchange all durable domain
// events flow through. Each consumer binds its own queue to the routing
// keys it cares about.
func DeclareExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}
