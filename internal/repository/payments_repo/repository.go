package payments_repo

import (
	"context"

	"library/internal/domain"
)

type PaymentRepository interface {
	// UpsertSessionTx inserts the payment or, when a row for the same
	// (borrowing, type) exists in EXPIRED status, overwrites it in place.
	// Any other existing row yields domain.ErrPaymentAlreadyOpen.
	UpsertSessionTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Payment, error)
	GetBySessionIDTx(ctx context.Context, querier domain.Querier, sessionID string) (*domain.Payment, error)
	// TransitionStatusTx moves the payment to status `to` only if it is currently `from`.
	TransitionStatusTx(ctx context.Context, querier domain.Querier, id int64, from, to domain.PaymentStatus) (bool, error)
	ListUnresolvedByUserTx(ctx context.Context, querier domain.Querier, userID int64) ([]domain.Payment, error)
	ListPendingSessions(ctx context.Context) ([]domain.Payment, error)
	List(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)
}
