package catalog

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"library/internal/domain"
	"library/internal/repository/books_repo"
)

type CreateBookRequest struct {
	Title    string
	Author   string
	Cover    domain.CoverType
	Copies   int
	DailyFee decimal.Decimal
}

// CatalogService exposes the book inventory. Copy counts are changed only by
// borrowing and returning.
type CatalogService interface {
	CreateBook(ctx context.Context, req CreateBookRequest) (*domain.Book, error)
	GetBook(ctx context.Context, id int64) (*domain.Book, error)
	ListBooks(ctx context.Context) ([]domain.Book, error)
}

type catalogService struct {
	tx       domain.Transactor
	bookRepo books_repo.BookRepository
	logger   *zap.Logger
}

func NewCatalogService(tx domain.Transactor, bookRepo books_repo.BookRepository, logger *zap.Logger) CatalogService {
	return &catalogService{
		tx:       tx,
		bookRepo: bookRepo,
		logger:   logger.With(zap.String("component", "catalog_service")),
	}
}

func (s *catalogService) CreateBook(ctx context.Context, req CreateBookRequest) (*domain.Book, error) {
	book, err := domain.NewBook(req.Title, req.Author, req.Cover, req.Copies, req.DailyFee)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		return s.bookRepo.CreateTx(ctx, q, book)
	})
	if err != nil {
		s.logger.Warn("Book not created", zap.String("title", book.Title), zap.String("author", book.Author), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Book created", zap.Int64("book_id", book.ID), zap.String("title", book.Title))
	return book, nil
}

func (s *catalogService) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	var book *domain.Book
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		book, err = s.bookRepo.GetByIDTx(ctx, q, id)
		return err
	})
	return book, err
}

func (s *catalogService) ListBooks(ctx context.Context) ([]domain.Book, error) {
	return s.bookRepo.List(ctx)
}
