package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"library/internal/domain"
)

type OutboxRepository interface {
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error
}

type Publisher interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Processor relays pending outbox messages to Kafka. It is driven by the
// scheduler; each call handles one batch.
type Processor struct {
	tx          domain.Transactor
	outboxRepo  OutboxRepository
	publisher   Publisher
	batchSize   int
	pollTimeout time.Duration
	logger      *zap.Logger
}

func NewProcessor(
	tx domain.Transactor,
	outboxRepo OutboxRepository,
	publisher Publisher,
	batchSize int,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Processor {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Processor{
		tx:          tx,
		outboxRepo:  outboxRepo,
		publisher:   publisher,
		batchSize:   batchSize,
		pollTimeout: pollTimeout,
		logger:      logger.With(zap.String("component", "outbox_processor")),
	}
}

// ProcessPending locks a batch of pending messages, publishes them and marks
// them SENT in the same transaction. A message that fails to publish stays
// PENDING and is retried on the next run.
func (p *Processor) ProcessPending(ctx context.Context) error {
	if p.pollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.pollTimeout)
		defer cancel()
	}

	sent := 0
	err := p.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		messages, err := p.outboxRepo.GetPendingMessages(ctx, q, p.batchSize)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			p.logger.Debug("No pending outbox messages found.")
			return nil
		}

		p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

		for _, msg := range messages {
			if err := p.publisher.Produce(ctx, msg.Topic, []byte(msg.AggregateID), msg.Payload); err != nil {
				p.logger.Error("Failed to send message to Kafka",
					zap.String("message_id", msg.ID),
					zap.String("topic", msg.Topic),
					zap.Error(err))
				continue
			}
			if err := p.outboxRepo.MarkSentTx(ctx, q, msg.ID, time.Now()); err != nil {
				return fmt.Errorf("failed to mark outbox message %s as sent: %w", msg.ID, err)
			}
			sent++
		}
		return nil
	})
	if err != nil {
		p.logger.Error("Outbox batch failed", zap.Error(err))
		return err
	}

	if sent > 0 {
		p.logger.Info("Outbox messages published", zap.Int("count", sent))
	}
	return nil
}
