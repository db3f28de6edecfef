package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends serialized events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// RabbitPublisher publishes JSON events to a RabbitMQ topic exchange. A
// dropped connection is redialed by the next Publish; events published while
// the broker is unreachable fail and are not queued.
type RabbitPublisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	conn     *amqp.Connection
	channel  *amqp.Channel
}

// NewRabbitPublisher connects to RabbitMQ and declares the exchange.
func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	p := &RabbitPublisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect dials the broker and declares the exchange. Callers hold mu or own p.
func (p *RabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return err
	}
	p.conn, p.channel = conn, ch
	return nil
}

func (p *RabbitPublisher) connected() bool {
	return p.conn != nil && !p.conn.IsClosed() && p.channel != nil && !p.channel.IsClosed()
}

func (p *RabbitPublisher) reconnect() error {
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn, p.channel = nil, nil
	if err := p.connect(); err != nil {
		return fmt.Errorf("reconnect to broker: %w", err)
	}
	return nil
}

// Publish serializes the payload to JSON and sends it to the exchange.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected() {
		if err := p.reconnect(); err != nil {
			return err
		}
	}
	err = p.publish(ctx, routingKey, body)
	if errors.Is(err, amqp.ErrClosed) {
		// Closed between the check and the publish.
		if err := p.reconnect(); err != nil {
			return err
		}
		err = p.publish(ctx, routingKey, body)
	}
	return err
}

func (p *RabbitPublisher) publish(ctx context.Context, routingKey string, body []byte) error {
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Close terminates the channel and connection.
func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := errors.Join(p.channel.Close(), p.conn.Close())
	p.conn, p.channel = nil, nil
	return err
}

// RoutingKey is the topic key for an event type.
func RoutingKey(eventType EventType) string {
	return "ticket." + string(eventType)
}
