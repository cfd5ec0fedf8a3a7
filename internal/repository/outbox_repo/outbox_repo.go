package outbox_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"library/internal/domain"
)

const outboxColumns = `id, aggregate_type, aggregate_id, message_type, topic, payload, status, created_at, sent_at`

type outboxRepository struct{}

func NewOutboxRepository() *outboxRepository {
	return &outboxRepository{}
}

func scanOutboxMessage(s interface{ Scan(dest ...any) error }, msg *domain.OutboxMessage) error {
	var sentAt sql.NullTime
	if err := s.Scan(
		&msg.ID,
		&msg.AggregateType,
		&msg.AggregateID,
		&msg.MessageType,
		&msg.Topic,
		&msg.Payload,
		&msg.Status,
		&msg.CreatedAt,
		&sentAt,
	); err != nil {
		return err
	}
	if sentAt.Valid {
		msg.SentAt = &sentAt.Time
	}
	return nil
}

// CreateMessageTx stores a new PENDING message. sent_at stays NULL until the
// processor publishes it.
func (r *outboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (id, aggregate_type, aggregate_id, message_type, topic, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7)
	`
	_, err := querier.ExecContext(ctx, query,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.MessageType, msg.Topic, msg.Payload, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store %s message %s: %w", msg.MessageType, msg.ID, err)
	}
	msg.Status = domain.OutboxStatusPending
	return nil
}

// GetPendingMessages locks up to limit PENDING messages, oldest first. Rows
// locked by a concurrent processor are skipped.
func (r *outboxRepository) GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox_messages
		WHERE status = 'PENDING'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`
	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		if err := scanOutboxMessage(rows, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MarkSentTx moves a PENDING message to SENT.
func (r *outboxRepository) MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error {
	res, err := querier.ExecContext(ctx,
		`UPDATE outbox_messages SET status = 'SENT', sent_at = $2 WHERE id = $1 AND status = 'PENDING'`,
		id, sentAt)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %s as sent: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to mark outbox message %s as sent: %w", id, err)
	} else if n == 0 {
		return fmt.Errorf("no pending outbox message %s", id)
	}
	return nil
}
