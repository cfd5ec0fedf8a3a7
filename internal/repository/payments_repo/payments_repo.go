package payments_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"library/internal/domain"
)

const paymentColumns = `id, borrowing_id, payment_type, payment_status, amount_to_pay, session_id, session_url, created_at, updated_at`

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func scanPayment(s interface{ Scan(dest ...any) error }, payment *domain.Payment) error {
	return s.Scan(
		&payment.ID,
		&payment.BorrowingID,
		&payment.Type,
		&payment.Status,
		&payment.AmountToPay,
		&payment.SessionID,
		&payment.SessionURL,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
}

func (r *paymentRepository) UpsertSessionTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (borrowing_id, payment_type, payment_status, amount_to_pay, session_id, session_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (borrowing_id, payment_type) DO UPDATE
		SET payment_status = EXCLUDED.payment_status,
		    amount_to_pay = EXCLUDED.amount_to_pay,
		    session_id = EXCLUDED.session_id,
		    session_url = EXCLUDED.session_url,
		    updated_at = EXCLUDED.updated_at
		WHERE payments.payment_status = 'EXPIRED'
		RETURNING ` + paymentColumns
	now := time.Now()
	err := scanPayment(querier.QueryRowContext(ctx, query,
		payment.BorrowingID,
		payment.Type,
		payment.Status,
		payment.AmountToPay,
		payment.SessionID,
		payment.SessionURL,
		now,
	), payment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPaymentAlreadyOpen
		}
		return fmt.Errorf("failed to upsert %s for borrowing %d: %w", payment.Type, payment.BorrowingID, err)
	}
	return nil
}

func (r *paymentRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	payment := &domain.Payment{}
	if err := scanPayment(querier.QueryRowContext(ctx, query, id), payment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by id %d: %w", id, err)
	}
	return payment, nil
}

func (r *paymentRepository) GetBySessionIDTx(ctx context.Context, querier domain.Querier, sessionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = $1`
	payment := &domain.Payment{}
	if err := scanPayment(querier.QueryRowContext(ctx, query, sessionID), payment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by session id %s: %w", sessionID, err)
	}
	return payment, nil
}

func (r *paymentRepository) TransitionStatusTx(ctx context.Context, querier domain.Querier, id int64, from, to domain.PaymentStatus) (bool, error) {
	query := `
		UPDATE payments
		SET payment_status = $1, updated_at = $2
		WHERE id = $3 AND payment_status = $4
	`
	res, err := querier.ExecContext(ctx, query, string(to), time.Now(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update payment %d status %s -> %s: %w", id, from, to, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for payment status update: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *paymentRepository) ListUnresolvedByUserTx(ctx context.Context, querier domain.Querier, userID int64) ([]domain.Payment, error) {
	query := `
		SELECT p.id, p.borrowing_id, p.payment_type, p.payment_status, p.amount_to_pay,
		       p.session_id, p.session_url, p.created_at, p.updated_at
		FROM payments p
		JOIN borrowings b ON b.id = p.borrowing_id
		WHERE b.user_id = $1 AND p.payment_status IN ('PENDING', 'EXPIRED')
		ORDER BY p.id
	`
	return r.queryPayments(ctx, querier, query, userID)
}

func (r *paymentRepository) ListPendingSessions(ctx context.Context) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_status = $1 AND session_id <> '' ORDER BY id`
	return r.queryPayments(ctx, r.db, query, string(domain.PaymentStatusPending))
}

func (r *paymentRepository) List(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	query, args, err := BuildListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build payment list query: %w", err)
	}
	return r.queryPayments(ctx, r.db, query, args...)
}

func (r *paymentRepository) queryPayments(ctx context.Context, querier domain.Querier, query string, args ...any) ([]domain.Payment, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var payment domain.Payment
		if err := scanPayment(rows, &payment); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}
