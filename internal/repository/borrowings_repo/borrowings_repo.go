package borrowings_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"library/internal/domain"
)

type borrowingRow struct {
	ID                 int64           `db:"id"`
	UserID             int64           `db:"user_id"`
	UserEmail          string          `db:"user_email"`
	BookID             int64           `db:"book_id"`
	BorrowDate         time.Time       `db:"borrow_date"`
	ExpectedReturnDate time.Time       `db:"expected_return_date"`
	ActualReturnDate   sql.NullTime    `db:"actual_return_date"`
	IsActive           bool            `db:"is_active"`
	BookTitle          string          `db:"book_title"`
	BookAuthor         string          `db:"book_author"`
	BookCover          string          `db:"book_cover"`
	BookCopies         int             `db:"book_copies"`
	BookDailyFee       decimal.Decimal `db:"book_daily_fee"`
}

func (row borrowingRow) toDomain() domain.Borrowing {
	b := domain.Borrowing{
		ID:                 row.ID,
		UserID:             row.UserID,
		UserEmail:          row.UserEmail,
		BookID:             row.BookID,
		BorrowDate:         domain.DateOf(row.BorrowDate),
		ExpectedReturnDate: domain.DateOf(row.ExpectedReturnDate),
		IsActive:           row.IsActive,
		Book: &domain.Book{
			ID:       row.BookID,
			Title:    row.BookTitle,
			Author:   row.BookAuthor,
			Cover:    domain.CoverType(row.BookCover),
			Copies:   row.BookCopies,
			DailyFee: row.BookDailyFee,
		},
	}
	if row.ActualReturnDate.Valid {
		returned := domain.DateOf(row.ActualReturnDate.Time)
		b.ActualReturnDate = &returned
	}
	return b
}

func (row *borrowingRow) scanFrom(s interface{ Scan(dest ...any) error }) error {
	return s.Scan(
		&row.ID,
		&row.UserID,
		&row.UserEmail,
		&row.BookID,
		&row.BorrowDate,
		&row.ExpectedReturnDate,
		&row.ActualReturnDate,
		&row.IsActive,
		&row.BookTitle,
		&row.BookAuthor,
		&row.BookCover,
		&row.BookCopies,
		&row.BookDailyFee,
	)
}

type borrowingRepository struct {
	db *sqlx.DB
}

func NewBorrowingRepository(db *sqlx.DB) *borrowingRepository {
	return &borrowingRepository{db: db}
}

func (r *borrowingRepository) CreateTx(ctx context.Context, querier domain.Querier, borrowing *domain.Borrowing) error {
	query := `
		INSERT INTO borrowings (user_id, user_email, book_id, borrow_date, expected_return_date, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id
	`
	err := querier.QueryRowContext(ctx, query,
		borrowing.UserID,
		borrowing.UserEmail,
		borrowing.BookID,
		borrowing.BorrowDate,
		borrowing.ExpectedReturnDate,
	).Scan(&borrowing.ID)
	if err != nil {
		return fmt.Errorf("failed to create borrowing of book %d for user %d: %w", borrowing.BookID, borrowing.UserID, err)
	}
	borrowing.IsActive = true
	return nil
}

func (r *borrowingRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Borrowing, error) {
	return r.get(ctx, querier, id, false)
}

func (r *borrowingRepository) GetForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Borrowing, error) {
	return r.get(ctx, querier, id, true)
}

func (r *borrowingRepository) get(ctx context.Context, querier domain.Querier, id int64, forUpdate bool) (*domain.Borrowing, error) {
	query, args, err := buildGetQuery(id, forUpdate)
	if err != nil {
		return nil, fmt.Errorf("failed to build borrowing query: %w", err)
	}

	var row borrowingRow
	if err := row.scanFrom(querier.QueryRowContext(ctx, query, args...)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBorrowingNotFound
		}
		return nil, fmt.Errorf("failed to get borrowing %d: %w", id, err)
	}
	b := row.toDomain()
	return &b, nil
}

func (r *borrowingRepository) MarkReturnedTx(ctx context.Context, querier domain.Querier, id int64, returnDate time.Time) error {
	query := `
		UPDATE borrowings
		SET actual_return_date = $1, is_active = FALSE
		WHERE id = $2 AND is_active
	`
	res, err := querier.ExecContext(ctx, query, returnDate, id)
	if err != nil {
		return fmt.Errorf("failed to mark borrowing %d returned: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrAlreadyReturned
	}
	return nil
}

func (r *borrowingRepository) List(ctx context.Context, filter domain.BorrowingFilter) ([]domain.Borrowing, error) {
	query, args, err := BuildListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build borrowing list query: %w", err)
	}

	var rows []borrowingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list borrowings: %w", err)
	}

	borrowings := make([]domain.Borrowing, 0, len(rows))
	for _, row := range rows {
		borrowings = append(borrowings, row.toDomain())
	}
	return borrowings, nil
}
