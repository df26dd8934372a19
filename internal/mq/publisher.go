package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Nodeflow/internal/events"
)

// DefaultBufferSize — ёмкость буфера EventPublisher.
const DefaultBufferSize = 1024

const publishTimeout = 5 * time.Second

// Message — конверт события в очереди.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип события.
	Type events.Type `json:"type"`

	// Payload — событие.
	Payload events.Event `json:"payload"`

	// Timestamp — время публикации.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage оборачивает событие в Message.
func NewMessage(e events.Event) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      e.Type,
		Payload:   e,
		Timestamp: time.Now(),
	}
}

// Sink — получатель сообщений.
type Sink interface {
	Publish(ctx context.Context, routingKey string, msg *Message) error
}

// Publisher публикует сообщения в exchange событий.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish реализует Sink.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			ExchangeEvents, // exchange
			routingKey,     // routing key
			false,          // mandatory
			false,          // immediate
			amqp.Publishing{
				ContentType: "application/json",
				MessageId:   msg.ID,
				Timestamp:   msg.Timestamp,
				Type:        string(msg.Type),
				Body:        body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", ExchangeEvents, routingKey, err)
		}

		p.logger.Debug("published event",
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// EventPublisher — events.Observer, публикующий события в фоне.
//
// OnEvent никогда не блокирует: при переполненном буфере событие
// отбрасывается и учитывается в Dropped.
type EventPublisher struct {
	sink   Sink
	logger *slog.Logger

	queue   chan events.Event
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// EventPublisherConfig — конфигурация EventPublisher.
type EventPublisherConfig struct {
	Sink Sink

	// BufferSize — ёмкость очереди (default: 1024).
	BufferSize int

	Logger *slog.Logger
}

// NewEventPublisher создаёт EventPublisher и запускает фоновую отправку.
func NewEventPublisher(cfg EventPublisherConfig) *EventPublisher {
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &EventPublisher{
		sink:   cfg.Sink,
		logger: logger,
		queue:  make(chan events.Event, size),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// OnEvent реализует events.Observer.
func (p *EventPublisher) OnEvent(e events.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		return
	}

	select {
	case p.queue <- e:
	default:
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			p.logger.Warn("event buffer full, dropping events", "dropped", n)
		}
	}
}

// Dropped возвращает число отброшенных событий.
func (p *EventPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close прекращает приём событий и ждёт отправки буфера.
func (p *EventPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EventPublisher) loop() {
	defer close(p.done)

	for e := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.sink.Publish(ctx, RoutingKey(e.Type), NewMessage(e))
		cancel()
		if err != nil {
			p.logger.Warn("failed to publish event",
				"type", e.Type,
				"execution_id", e.ExecutionID,
				"error", err,
			)
		}
	}
}
