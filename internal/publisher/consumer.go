package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"news_portal/internal/domain"
	"news_portal/internal/metrics"
)

// TaskHandler processes one dispatch task. It must not fail the delivery:
// tasks are acknowledged once handled, whatever happened to individual sends.
type TaskHandler func(ctx context.Context, task domain.DispatchTask)

type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *slog.Logger
}

func NewConsumer(cfg Config, logger *slog.Logger) (*Consumer, error) {
	conn, ch, err := dial(cfg)
	if err != nil {
		return nil, err
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   cfg.QueueName,
		logger:  logger.With("queue", cfg.QueueName),
	}, nil
}

// Run consumes tasks until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context, handle TaskHandler) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx,
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped")
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.process(ctx, d, handle)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery, handle TaskHandler) {
	var task domain.DispatchTask
	if err := json.Unmarshal(d.Body, &task); err != nil {
		c.logger.Error("discarding undecodable task",
			"message_id", d.MessageId,
			"error", err,
		)
		metrics.DispatchTasksTotal.WithLabelValues("consume", "rejected").Inc()
		_ = d.Nack(false, false)
		return
	}

	handle(ctx, task)

	// shutdown interrupted the fan-out; recipients already sent are guarded
	// against a second send, the rest get the redelivery
	if ctx.Err() != nil {
		c.logger.Warn("task interrupted, requeueing", "post_id", task.PostID)
		metrics.DispatchTasksTotal.WithLabelValues("consume", "requeued").Inc()
		if err := d.Nack(false, true); err != nil {
			c.logger.Error("nack failed", "post_id", task.PostID, "error", err)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error("ack failed", "post_id", task.PostID, "error", err)
		return
	}
	metrics.DispatchTasksTotal.WithLabelValues("consume", "success").Inc()
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
