package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/config"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/mailer"
	"github.com/wneessen/go-mail"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		return
	}
	if cfg.RabbitMQ.DSN == "" || cfg.Email.SMTP.Host == "" {
		logger.Error("RABBITMQ_DSN and EMAIL_SMTP_HOST are required by the mail worker")
		return
	}

	/**********************************************
	 * 创建邮件客户端
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
	)
	if err != nil {
		logger.Error("failed to create mail client", slog.String("error", err.Error()))
		return
	}
	defer client.Close()

	// 验证邮件客户端是否连接成功
	clientDialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
	defer cancel()
	if err := client.DialWithContext(clientDialCtx); err != nil {
		logger.Error("failed to connect to smtp server", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("failed to open channel", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	q, err := mailer.DeclareQueue(ch, cfg.RabbitMQ.Queue)
	if err != nil {
		logger.Error("failed to declare queue", slog.String("error", err.Error()))
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgs, err := ch.Consume(
		q.Name,
		"",    // 由 RabbitMQ 自动分配消费者标识
		false, // 手动确认
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("failed to consume queue", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("delivery channel closed")
					return
				}
				handleDelivery(logger, client, cfg.Email.SMTP.Username, msg)
			}
		}
	}()

	logger.Info("waiting for messages (press CTRL+C to exit)")
	<-sigChan

	logger.Info("stopping mail worker")
	cancel()
	wg.Wait()
	logger.Info("mail worker stopped")
}

func handleDelivery(logger *slog.Logger, client *mail.Client, from string, msg amqp.Delivery) {
	mailMessage, err := mailer.Decode(msg.Body)
	if err != nil {
		logger.Error("failed to decode mail message", slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}

	m, err := mailer.Compose(from, mailMessage)
	if err != nil {
		if errors.Is(err, mailer.ErrUnknownMailType) {
			logger.Error("unsupported mail type", slog.String("type", mailMessage.Type))
		} else {
			logger.Error("failed to compose mail", slog.String("error", err.Error()))
		}
		_ = msg.Nack(false, false)
		return
	}

	if err := client.DialAndSend(m); err != nil {
		logger.Error("failed to send mail", slog.String("error", err.Error()))
		_ = msg.Nack(false, true) // 重新入队
		return
	}

	_ = msg.Ack(false)
	logger.Info("mail sent", slog.String("type", mailMessage.Type), slog.String("to", mailMessage.To))
}
