package rabbitmq

import (
	"furniture-order-service/internal/infra"

	"github.com/streadway/amqp"
)

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var _ infra.EventPublisher = (*Publisher)(nil)
