package events

import (
	"CareChain/config"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Envelope is the message body of every published event.
type Envelope struct {
	Event      string      `json:"event"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Publisher sends workflow events to a topic exchange. The event name is the
// routing key.
type Publisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
	log      *zap.Logger
}

// NewPublisher connects to RabbitMQ and declares the exchange. It returns a
// nil Publisher when RabbitMQ is disabled; a nil Publisher drops events.
func NewPublisher(cfg config.RabbitMQConfig, log *zap.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		log.Info("rabbitmq disabled, workflow events will not be published")
		return nil, nil
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		cfg.Exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	log.Info("rabbitmq publisher ready", zap.String("exchange", cfg.Exchange))
	return &Publisher{conn: conn, channel: channel, exchange: cfg.Exchange, log: log}, nil
}

func (p *Publisher) Publish(ctx context.Context, event string, payload interface{}) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(Envelope{Event: event, OccurredAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		event,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event, err)
	}
	return nil
}

// Connection exposes the broker connection for consumers sharing it.
func (p *Publisher) Connection() *amqp.Connection {
	if p == nil {
		return nil
	}
	return p.conn
}

func (p *Publisher) Close() error {
	if p == nil || p.channel == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}
