package events

import (
	"CareChain/config"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const changeFlushed = "flushed"

// UserInvalidator evicts cached directory entries.
type UserInvalidator interface {
	InvalidateUser(ctx context.Context, id string) error
	InvalidateAllUsers(ctx context.Context) error
}

// UserChangedMessage is published by the identity service whenever a user is
// updated, deactivated or deleted. Routing key: identity.user.<change>. The
// "flushed" change carries no id and evicts every cached user.
type UserChangedMessage struct {
	ID string `json:"id"`
}

// DirectoryListener keeps the user cache consistent with the identity
// service so deactivated doctors and technicians stop receiving work.
type DirectoryListener struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	cfg         config.RabbitMQConfig
	invalidator UserInvalidator
	log         *zap.Logger
}

// NewDirectoryListener opens a channel on conn. It returns nil when conn is
// nil, which is the case when RabbitMQ is disabled.
func NewDirectoryListener(conn *amqp.Connection, cfg config.RabbitMQConfig, invalidator UserInvalidator, log *zap.Logger) (*DirectoryListener, error) {
	if conn == nil {
		return nil, nil
	}
	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	return &DirectoryListener{
		conn:        conn,
		channel:     channel,
		cfg:         cfg,
		invalidator: invalidator,
		log:         log,
	}, nil
}

// Start declares the queue and consumes it until ctx is done.
func (l *DirectoryListener) Start(ctx context.Context) error {
	if l == nil {
		return nil
	}
	err := l.channel.ExchangeDeclare(l.cfg.DirectoryExchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", l.cfg.DirectoryExchange, err)
	}
	queue, err := l.channel.QueueDeclare(
		l.cfg.DirectoryQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", l.cfg.DirectoryQueue, err)
	}
	if err := l.channel.QueueBind(queue.Name, l.cfg.DirectoryBinding, l.cfg.DirectoryExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", queue.Name, err)
	}

	msgs, err := l.channel.Consume(
		queue.Name,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", queue.Name, err)
	}

	l.log.Info("directory listener started",
		zap.String("queue", queue.Name),
		zap.String("binding", l.cfg.DirectoryBinding))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					l.log.Warn("directory queue closed")
					return
				}
				l.handle(ctx, msg)
			}
		}
	}()
	return nil
}

func (l *DirectoryListener) handle(ctx context.Context, msg amqp.Delivery) {
	err := l.process(ctx, msg.RoutingKey, msg.Body)
	if err != nil {
		l.log.Warn("failed to process directory message",
			zap.String("routing_key", msg.RoutingKey),
			zap.Error(err))
		// dropped, not requeued
		if nackErr := msg.Nack(false, false); nackErr != nil {
			l.log.Warn("failed to nack message", zap.Error(nackErr))
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		l.log.Warn("failed to ack message", zap.Error(ackErr))
	}
}

func (l *DirectoryListener) process(ctx context.Context, routingKey string, body []byte) error {
	parts := strings.Split(routingKey, ".")
	if len(parts) != 3 || parts[1] != "user" {
		return fmt.Errorf("invalid routing key: %s", routingKey)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if parts[2] == changeFlushed {
		if err := l.invalidator.InvalidateAllUsers(ctx); err != nil {
			return fmt.Errorf("failed to flush user cache: %w", err)
		}
		l.log.Info("user cache flushed")
		return nil
	}

	var message UserChangedMessage
	if err := json.Unmarshal(body, &message); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if message.ID == "" {
		return fmt.Errorf("message without user id")
	}
	if err := l.invalidator.InvalidateUser(ctx, message.ID); err != nil {
		return fmt.Errorf("failed to invalidate user %s: %w", message.ID, err)
	}
	l.log.Debug("user cache invalidated", zap.String("user_id", message.ID), zap.String("change", parts[2]))
	return nil
}

// Stop closes the listener channel. The connection belongs to the publisher.
func (l *DirectoryListener) Stop() error {
	if l == nil || l.channel == nil {
		return nil
	}
	return l.channel.Close()
}
