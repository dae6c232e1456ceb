package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freshgrove/fulfillment/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventPublisher pushes order lifecycle events onto the broker. The event
// type doubles as the routing key on a topic exchange.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, routingKey string, event *models.OrderEvent) error
	Close() error
}

type publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (EventPublisher, error) {

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &publisher{conn: conn, channel: channel, exchange: exchange}, nil
}

func (p *publisher) PublishOrderEvent(ctx context.Context, routingKey string, event *models.OrderEvent) error {

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    event.OrderID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	return nil
}

func (p *publisher) Close() error {

	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}

	return p.conn.Close()
}
