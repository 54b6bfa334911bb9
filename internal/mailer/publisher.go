package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher 将邮件投递到 rabbitmq 的队列中，由 cmd/mail 消费并发送
type Publisher struct {
	ch      channel
	queue   string
	timeout time.Duration
}

func NewPublisher(ch *amqp.Channel, queue string, timeout time.Duration) *Publisher {
	return &Publisher{
		ch:      ch,
		queue:   queue,
		timeout: timeout,
	}
}

// DeclareQueue 声明持久化的邮件队列，生产者和消费者都需要调用
func DeclareQueue(ch *amqp.Channel, queue string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queue,
		true,  // 持久化
		false, // 没有消费者时不自动删除
		false, // 非独占
		false,
		nil,
	)
}

func (p *Publisher) Publish(ctx context.Context, msg domain.MailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
