package mq

import (
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Nodeflow/internal/events"
)

// Ошибки соединения.
var (
	// ErrNoChannel — соединение восстанавливается, канала пока нет.
	ErrNoChannel = errors.New("no channel available")

	// ErrClosed — соединение закрыто через Close.
	ErrClosed = errors.New("connection closed")
)

// ExchangeEvents — topic exchange событий выполнения.
const ExchangeEvents = "nodeflow.events"

// Binding patterns.
const (
	BindAll       = "#"
	BindWorkflows = "workflow.*"
	BindNodes     = "node.*"
)

// RoutingKey возвращает routing key для типа события.
func RoutingKey(t events.Type) string {
	return strings.Replace(string(t), ":", ".", 1)
}

func declareExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		ExchangeEvents, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}
	return nil
}

// declareSubscription создаёт очередь подписчика и привязывает её
// к exchange по каждому шаблону.
//
// Пустое имя создаёт exclusive очередь с именем от брокера, которая
// удаляется вместе с соединением.
func declareSubscription(ch *amqp.Channel, name string, patterns []string) (string, error) {
	if err := declareExchange(ch); err != nil {
		return "", err
	}

	exclusive := name == ""
	q, err := ch.QueueDeclare(
		name,       // name
		!exclusive, // durable
		exclusive,  // delete when unused
		exclusive,  // exclusive
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare queue %q: %w", name, err)
	}

	if len(patterns) == 0 {
		patterns = []string{BindAll}
	}
	for _, p := range patterns {
		if err := ch.QueueBind(q.Name, p, ExchangeEvents, false, nil); err != nil {
			return "", fmt.Errorf("bind queue %s to %s: %w", q.Name, p, err)
		}
	}

	return q.Name, nil
}
