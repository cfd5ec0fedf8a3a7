package borrowings_repo

import (
	"context"
	"time"

	"library/internal/domain"
)

type BorrowingRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, borrowing *domain.Borrowing) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Borrowing, error)
	GetForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Borrowing, error)
	MarkReturnedTx(ctx context.Context, querier domain.Querier, id int64, returnDate time.Time) error
	List(ctx context.Context, filter domain.BorrowingFilter) ([]domain.Borrowing, error)
}
