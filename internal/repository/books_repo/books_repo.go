package books_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"library/internal/domain"
	"library/internal/infrastructure/database"
)

type bookRepository struct {
	db *sqlx.DB
}

func NewBookRepository(db *sqlx.DB) *bookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) CreateTx(ctx context.Context, querier domain.Querier, book *domain.Book) error {
	query := `
		INSERT INTO books (title, author, cover, copies, daily_fee)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := querier.QueryRowContext(ctx, query,
		book.Title, book.Author, book.Cover, book.Copies, book.DailyFee).Scan(&book.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrBookAlreadyExists
		}
		return fmt.Errorf("failed to create book %q: %w", book.Title, err)
	}
	return nil
}

func (r *bookRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Book, error) {
	return r.get(ctx, querier, id, "")
}

func (r *bookRepository) GetForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Book, error) {
	return r.get(ctx, querier, id, "FOR UPDATE")
}

func (r *bookRepository) get(ctx context.Context, querier domain.Querier, id int64, lock string) (*domain.Book, error) {
	query := `
		SELECT id, title, author, cover, copies, daily_fee
		FROM books
		WHERE id = $1
	` + lock
	book := &domain.Book{}
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Cover,
		&book.Copies,
		&book.DailyFee,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book %d: %w", id, err)
	}
	return book, nil
}

func (r *bookRepository) AdjustCopiesTx(ctx context.Context, querier domain.Querier, id int64, delta int) error {
	query := `
		UPDATE books
		SET copies = copies + $1
		WHERE id = $2 AND copies + $1 >= 0
	`
	res, err := querier.ExecContext(ctx, query, delta, id)
	if err != nil {
		return fmt.Errorf("failed to adjust copies of book %d by %d: %w", id, delta, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNoAvailableCopies
	}
	return nil
}

func (r *bookRepository) List(ctx context.Context) ([]domain.Book, error) {
	var books []domain.Book
	query := `SELECT id, title, author, cover, copies, daily_fee FROM books ORDER BY title, author`
	if err := r.db.SelectContext(ctx, &books, query); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}
