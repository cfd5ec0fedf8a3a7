package notify

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"library/internal/domain"
	"library/internal/domain/event"
	"library/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	aggregateType = "notification"
	messageType   = "NotificationPublished"
)

type OutboxWriter interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
}

// OutboxNotifier stores staff notifications in the outbox; the outbox
// processor later publishes them to Kafka.
type OutboxNotifier struct {
	db         domain.Querier
	outboxRepo OutboxWriter
	topic      string
	now        func() time.Time
	logger     *zap.Logger
}

func NewOutboxNotifier(db domain.Querier, outboxRepo OutboxWriter, topic string, logger *zap.Logger) *OutboxNotifier {
	return &OutboxNotifier{
		db:         db,
		outboxRepo: outboxRepo,
		topic:      topic,
		now:        time.Now,
		logger:     logger.With(zap.String("component", "notifier")),
	}
}

// Send never fails the caller. Errors are logged and the notification is dropped.
func (n *OutboxNotifier) Send(ctx context.Context, text string) {
	msg, err := n.buildMessage(text)
	if err != nil {
		n.logger.Error("Failed to build notification", zap.Error(err))
		return
	}

	if err := n.outboxRepo.CreateMessageTx(ctx, n.db, msg); err != nil {
		n.logger.Error("Failed to store notification in outbox",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		return
	}
	n.logger.Debug("Notification queued", zap.String("message_id", msg.ID))
}

func (n *OutboxNotifier) buildMessage(text string) (*domain.OutboxMessage, error) {
	id, err := util.GenerateUUID()
	if err != nil {
		return nil, err
	}
	now := n.now()

	payload, err := json.Marshal(event.NotificationPublished{
		ID:        id,
		Text:      text,
		Timestamp: now,
	})
	if err != nil {
		return nil, err
	}

	return &domain.OutboxMessage{
		ID:            id,
		AggregateType: aggregateType,
		AggregateID:   id,
		MessageType:   messageType,
		Topic:         n.topic,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     now,
	}, nil
}
