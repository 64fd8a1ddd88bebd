package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// QueueName is the queue carrying outgoing mail.
const QueueName = "outgoing_mail"

// Publisher is the publishing half of a message queue.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// Consumer is the consuming half of a message queue.
type Consumer interface {
	Consume(ctx context.Context, queueName string, handler func(ctx context.Context, body []byte) error) error
}

// QueuedMailer enqueues messages instead of delivering them inline.
type QueuedMailer struct {
	pub Publisher
}

// NewQueuedMailer creates a Sender that publishes to QueueName.
func NewQueuedMailer(pub Publisher) *QueuedMailer {
	return &QueuedMailer{pub: pub}
}

func (q *QueuedMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}
	return q.pub.Publish(ctx, QueueName, body)
}

// Worker drains QueueName into a delivering Sender.
type Worker struct {
	sender Sender
	logger *zap.Logger
}

// NewWorker creates a Worker delivering through sender.
func NewWorker(sender Sender, logger *zap.Logger) *Worker {
	return &Worker{sender: sender, logger: logger.Named("mail_worker")}
}

// Handle decodes and delivers one queued message.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode mail: %w", err)
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		return err
	}
	w.logger.Info("mail delivered", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, c Consumer) error {
	return c.Consume(ctx, QueueName, w.Handle)
}
