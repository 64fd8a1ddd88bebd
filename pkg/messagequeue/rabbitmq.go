package messagequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// RabbitMQService implements the MessageQueue interface using RabbitMQ.
type RabbitMQService struct {
	conn   *amqp.Connection
	logger *zap.Logger

	// amqp channels are not safe for concurrent publishing.
	pubMu   sync.Mutex
	pubChan *amqp.Channel
}

// NewRabbitMQService dials url and opens the publishing channel.
func NewRabbitMQService(url string, logger *zap.Logger) (*RabbitMQService, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	return &RabbitMQService{conn: conn, pubChan: ch, logger: logger.Named("rabbitmq")}, nil
}

func declare(ch *amqp.Channel, queueName string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

// Publish sends a persistent JSON message to queueName.
func (s *RabbitMQService) Publish(ctx context.Context, queueName string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	q, err := declare(s.pubChan, queueName)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	err = s.pubChan.Publish("", q.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queueName, err)
	}
	return nil
}

// Consume opens a dedicated channel and dispatches deliveries with manual acks.
func (s *RabbitMQService) Consume(ctx context.Context, queueName string, handler Handler) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	q, err := declare(ch, queueName)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queueName, err)
	}

	s.logger.Info("consuming", zap.String("queue", q.Name))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			if err := handler(ctx, d.Body); err != nil {
				s.logger.Warn("message rejected", zap.String("queue", q.Name), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close closes the publishing channel and the connection.
func (s *RabbitMQService) Close() error {
	var errs []error
	if s.pubChan != nil {
		errs = append(errs, s.pubChan.Close())
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}
