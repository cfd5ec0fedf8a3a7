package books_repo

import (
	"context"

	"library/internal/domain"
)

type BookRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, book *domain.Book) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Book, error)
	// GetForUpdateTx locks the book row until the surrounding transaction ends.
	GetForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Book, error)
	AdjustCopiesTx(ctx context.Context, querier domain.Querier, id int64, delta int) error
	List(ctx context.Context) ([]domain.Book, error)
}
