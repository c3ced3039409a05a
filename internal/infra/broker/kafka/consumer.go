package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer runs a consumer group. A message is retried up to Attempts times
// and then skipped; the offset always moves on so one bad event cannot stall
// the partition.
type Consumer struct {
	group    sarama.ConsumerGroup
	handler  MessageHandler
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{group: g, handler: handler, logger: logger, attempts: 3, backoff: time.Second}, nil
}

// Run blocks until ctx is cancelled or the group is closed.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for {
		if err := c.group.Consume(ctx, topics, c.groupHandler()); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) groupHandler() consumerGroupHandler {
	return consumerGroupHandler{handler: c.handler, logger: c.logger, attempts: c.attempts, backoff: c.backoff}
}

type consumerGroupHandler struct {
	handler  MessageHandler
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

func (h consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := h.deliver(sess.Context(), message); err != nil {
			h.logger.Error("kafka message dropped",
				"topic", message.Topic,
				"partition", message.Partition,
				"offset", message.Offset,
				"error", err)
		}
		sess.MarkMessage(message, "")
	}
	return nil
}

func (h consumerGroupHandler) deliver(ctx context.Context, msg *sarama.ConsumerMessage) error {
	attempts := h.attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = h.handler.Handle(ctx, msg); err == nil || errors.Is(err, ErrPermanent) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.backoff * time.Duration(i+1)):
		}
	}
	return err
}
