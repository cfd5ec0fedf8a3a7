package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"library/internal/domain"
	"library/internal/domain/event"
	"library/internal/testutil/memstore"
)

func TestSend_WritesOutboxMessage(t *testing.T) {
	// arrange
	store := memstore.New()
	n := NewOutboxNotifier(nil, store.Outbox(), "library_notifications", zap.NewNop())
	fixed := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	// act
	n.Send(context.Background(), "📙 Borrowing")

	// assert
	msgs := store.OutboxMessages()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, "library_notifications", msg.Topic)
	assert.Equal(t, domain.OutboxStatusPending, msg.Status)
	assert.Equal(t, "notification", msg.AggregateType)
	assert.NotEmpty(t, msg.ID)

	var payload event.NotificationPublished
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "📙 Borrowing", payload.Text)
	assert.Equal(t, msg.ID, payload.ID)
	assert.True(t, fixed.Equal(payload.Timestamp))
}

func TestSend_SwallowsStorageErrors(t *testing.T) {
	store := memstore.New()
	store.FailOn("Outbox.CreateMessageTx", errors.New("db down"))
	n := NewOutboxNotifier(nil, store.Outbox(), "library_notifications", zap.NewNop())

	assert.NotPanics(t, func() { n.Send(context.Background(), "hello") })
	assert.Empty(t, store.OutboxMessages())
}
