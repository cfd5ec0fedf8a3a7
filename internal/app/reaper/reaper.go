package reaper

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"library/internal/domain"
	"library/internal/notify"
)

type PaymentStore interface {
	ListPendingSessions(ctx context.Context) ([]domain.Payment, error)
	TransitionStatusTx(ctx context.Context, querier domain.Querier, id int64, from, to domain.PaymentStatus) (bool, error)
}

type BorrowingReader interface {
	GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Borrowing, error)
}

type Report struct {
	Checked int
	Expired int
	Paid    int
	Failed  int
}

// Reaper pulls the provider-side status of every pending checkout session.
// Sessions expire on the provider's clock, so nothing pushes this to us.
type Reaper struct {
	tx         domain.Transactor
	payments   PaymentStore
	borrowings BorrowingReader
	provider   domain.CheckoutProvider
	notifier   domain.Notifier
	logger     *zap.Logger
}

func NewReaper(
	tx domain.Transactor,
	payments PaymentStore,
	borrowings BorrowingReader,
	provider domain.CheckoutProvider,
	notifier domain.Notifier,
	logger *zap.Logger,
) *Reaper {
	return &Reaper{
		tx:         tx,
		payments:   payments,
		borrowings: borrowings,
		provider:   provider,
		notifier:   notifier,
		logger:     logger.With(zap.String("component", "session_reaper")),
	}
}

// Sweep checks every pending session. A failing item is skipped and reported;
// the remaining items are still processed.
func (r *Reaper) Sweep(ctx context.Context) (Report, error) {
	pending, err := r.payments.ListPendingSessions(ctx)
	if err != nil {
		r.logger.Error("Failed to list pending payments", zap.Error(err))
		return Report{}, fmt.Errorf("session sweep: %w", err)
	}

	var (
		report Report
		errs   *multierror.Error
	)
	for _, p := range pending {
		report.Checked++
		to, err := r.reconcile(ctx, p)
		if err != nil {
			report.Failed++
			errs = multierror.Append(errs, fmt.Errorf("payment %d (session %s): %w", p.ID, p.SessionID, err))
			r.logger.Warn("Failed to reconcile pending payment",
				zap.Int64("payment_id", p.ID),
				zap.String("session_id", p.SessionID),
				zap.Error(err))
			continue
		}
		switch to {
		case domain.PaymentStatusExpired:
			report.Expired++
		case domain.PaymentStatusPaid:
			report.Paid++
		}
	}

	r.logger.Info("Session sweep finished",
		zap.Int("checked", report.Checked),
		zap.Int("expired", report.Expired),
		zap.Int("paid", report.Paid),
		zap.Int("failed", report.Failed))

	if err := errs.ErrorOrNil(); err != nil {
		r.notifier.Send(ctx, failureMessage(errs))
		return report, err
	}
	return report, nil
}

// reconcile returns the status the payment was moved to, or "" when unchanged.
func (r *Reaper) reconcile(ctx context.Context, p domain.Payment) (domain.PaymentStatus, error) {
	status, err := r.provider.GetSessionStatus(ctx, p.SessionID)
	if err != nil {
		return "", err
	}

	var to domain.PaymentStatus
	switch status {
	case domain.SessionStatusExpired:
		to = domain.PaymentStatusExpired
	case domain.SessionStatusPaid:
		to = domain.PaymentStatusPaid
	default:
		return "", nil
	}

	var (
		moved     bool
		borrowing *domain.Borrowing
	)
	err = r.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		moved, err = r.payments.TransitionStatusTx(ctx, q, p.ID, domain.PaymentStatusPending, to)
		if err != nil || !moved || to != domain.PaymentStatusPaid {
			return err
		}
		borrowing, err = r.borrowings.GetByIDTx(ctx, q, p.BorrowingID)
		return err
	})
	if err != nil {
		return "", err
	}
	if !moved {
		// Settled concurrently, e.g. by the success redirect.
		return "", nil
	}
	r.logger.Info("Pending payment reconciled", zap.Int64("payment_id", p.ID), zap.String("status", string(to)))

	if to == domain.PaymentStatusPaid {
		p.Status = to
		r.notifier.Send(ctx, notify.PaymentReceived(borrowing, &p))
	}
	return to, nil
}

func failureMessage(errs *multierror.Error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "❗ <b>Session check</b>\n%d payment(s) could not be checked:", len(errs.Errors))
	for _, err := range errs.Errors {
		b.WriteString("\n- ")
		b.WriteString(err.Error())
	}
	return b.String()
}
