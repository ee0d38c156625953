package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/benvon/usage-gov/internal/models"
)

const (
	// DefaultExchangeName is the exchange alert payloads are published to
	DefaultExchangeName = "usage_alerts"
	// DefaultRoutingKey routes standard alerts
	DefaultRoutingKey = "alerts.threshold"
	// CriticalRoutingKey routes critical alerts so sinks can fan them
	// out to faster channels
	CriticalRoutingKey = "alerts.threshold.critical"
)

// AlertPublisher delivers alert payloads to RabbitMQ. Notification
// dedup and delivery (email/webhook/SMS) are downstream consumers'
// concerns; this only hands the payload off.
type AlertPublisher struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
}

// NewAlertPublisher connects to RabbitMQ and declares the alert
// exchange.
func NewAlertPublisher(amqpURL string) (*AlertPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p := &AlertPublisher{
		conn:         conn,
		channel:      ch,
		exchangeName: DefaultExchangeName,
	}

	err = ch.ExchangeDeclare(
		p.exchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return p, nil
}

// Notify implements alerts.Notifier by publishing the alert as a
// persistent JSON message.
func (p *AlertPublisher) Notify(ctx context.Context, alert models.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	routingKey := DefaultRoutingKey
	if alert.Critical {
		routingKey = CriticalRoutingKey
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	return nil
}

// HealthCheck verifies the connection is still open.
func (p *AlertPublisher) HealthCheck(_ context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

// Close closes the channel and connection.
func (p *AlertPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			_ = err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
