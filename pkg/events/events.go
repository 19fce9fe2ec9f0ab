// Package events publishes order lifecycle events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/config"
	"github.com/CesarCrz/cEatssFB/pkg/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Routing keys.
const (
	KeyOrderReceived      = "order.received"
	KeyOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the message body for every order routing key.
type OrderEvent struct {
	OrderID      string        `json:"orderId"`
	RestaurantID string        `json:"restaurantId"`
	Status       models.Status `json:"status"`
	Previous     models.Status `json:"previousStatus,omitempty"`
	Total        models.Amount `json:"total,omitempty"`
	OccurredAt   time.Time     `json:"occurredAt"`
}

// Publisher sends order events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event OrderEvent) error
	Close() error
}

// NopPublisher drops events. It is used when RabbitMQ is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, OrderEvent) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	logger   *zap.Logger
}

// NewRabbitPublisher dials cfg.URL and declares the durable topic exchange.
func NewRabbitPublisher(cfg *config.RabbitMQConfig, logger *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", cfg.Exchange, err)
	}

	logger.Info("Connected to RabbitMQ", zap.String("exchange", cfg.Exchange))
	return &RabbitPublisher{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, event OrderEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.OrderID,
			Timestamp:    event.OccurredAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
