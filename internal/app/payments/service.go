package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"library/internal/domain"
	"library/internal/notify"
	"library/internal/repository/borrowings_repo"
	"library/internal/repository/payments_repo"
)

const sessionIDPlaceholder = "?session_id={CHECKOUT_SESSION_ID}"

const cancelNotice = "Your payment session is available for 24 hours. Please complete the payment within this time."

// Config carries the provider-facing settings of the settlement component.
type Config struct {
	SuccessURL string
	CancelURL  string
	Currency   string
}

type ReconcileResult struct {
	Payment *domain.Payment
	// Settled is false while the provider still reports the session as open.
	Settled bool
}

type PaymentService interface {
	// OpenSession creates a checkout session for the borrowing and stores it.
	// When the provider fails the payment is still stored, as EXPIRED with no
	// session, and a *domain.ProviderError is returned alongside it.
	OpenSession(ctx context.Context, borrowing *domain.Borrowing, amount decimal.Decimal, paymentType domain.PaymentType) (*domain.Payment, error)
	RenewSession(ctx context.Context, caller domain.Caller, paymentID int64) (*domain.Payment, error)
	ReconcileSession(ctx context.Context, sessionID string) (*ReconcileResult, error)
	UnresolvedForUser(ctx context.Context, userID int64) ([]domain.Payment, error)
	GetPayment(ctx context.Context, caller domain.Caller, id int64) (*domain.Payment, error)
	ListPayments(ctx context.Context, caller domain.Caller, filter domain.PaymentFilter) ([]domain.Payment, error)
	CancelNotice() string
}

type paymentService struct {
	cfg           Config
	tx            domain.Transactor
	paymentRepo   payments_repo.PaymentRepository
	borrowingRepo borrowings_repo.BorrowingRepository
	provider      domain.CheckoutProvider
	notifier      domain.Notifier
	logger        *zap.Logger
}

func NewPaymentService(
	cfg Config,
	tx domain.Transactor,
	paymentRepo payments_repo.PaymentRepository,
	borrowingRepo borrowings_repo.BorrowingRepository,
	provider domain.CheckoutProvider,
	notifier domain.Notifier,
	logger *zap.Logger,
) PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &paymentService{
		cfg:           cfg,
		tx:            tx,
		paymentRepo:   paymentRepo,
		borrowingRepo: borrowingRepo,
		provider:      provider,
		notifier:      notifier,
		logger:        logger.With(zap.String("component", "payment_service")),
	}
}

func (s *paymentService) OpenSession(ctx context.Context, borrowing *domain.Borrowing, amount decimal.Decimal, paymentType domain.PaymentType) (*domain.Payment, error) {
	amount = amount.Round(2)
	payment := &domain.Payment{
		BorrowingID: borrowing.ID,
		Type:        paymentType,
		Status:      domain.PaymentStatusPending,
		AmountToPay: amount,
	}

	session, providerErr := s.provider.CreateSession(ctx, domain.CheckoutRequest{
		Amount:      amount,
		Currency:    s.cfg.Currency,
		Description: fmt.Sprintf("%s for %s", paymentType.Label(), borrowing.BookTitle()),
		SuccessURL:  s.cfg.SuccessURL + sessionIDPlaceholder,
		CancelURL:   s.cfg.CancelURL + sessionIDPlaceholder,
	})
	if providerErr != nil {
		s.logger.Warn("Checkout session not opened, storing payment as expired",
			zap.Int64("borrowing_id", borrowing.ID),
			zap.String("payment_type", string(paymentType)),
			zap.Error(providerErr))
		payment.Status = domain.PaymentStatusExpired
		if !errors.Is(providerErr, domain.ErrProviderUnavailable) {
			providerErr = &domain.ProviderError{Op: "create session", Err: providerErr}
		}
	} else {
		payment.SessionID = session.ID
		payment.SessionURL = session.URL
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		return s.paymentRepo.UpsertSessionTx(ctx, q, payment)
	})
	if err != nil {
		if errors.Is(err, domain.ErrPaymentAlreadyOpen) {
			s.logger.Warn("Payment already open", zap.Int64("borrowing_id", borrowing.ID), zap.String("payment_type", string(paymentType)))
			return nil, err
		}
		s.logger.Error("Failed to store payment", zap.Int64("borrowing_id", borrowing.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to store %s for borrowing %d: %w", paymentType, borrowing.ID, err)
	}

	if providerErr != nil {
		return payment, providerErr
	}

	s.logger.Info("Checkout session opened",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("borrowing_id", borrowing.ID),
		zap.String("session_id", payment.SessionID),
		zap.String("amount", amount.StringFixed(2)))
	return payment, nil
}

func (s *paymentService) RenewSession(ctx context.Context, caller domain.Caller, paymentID int64) (*domain.Payment, error) {
	var (
		payment   *domain.Payment
		borrowing *domain.Borrowing
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		payment, borrowing, err = s.loadVisible(ctx, q, caller, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if payment.Status != domain.PaymentStatusExpired {
		return nil, domain.ErrPaymentNotExpired
	}

	renewed, err := s.OpenSession(ctx, borrowing, payment.AmountToPay, payment.Type)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentAlreadyOpen) {
			// Another renewal won the race.
			return nil, domain.ErrPaymentNotExpired
		}
		return nil, err
	}

	s.logger.Info("Checkout session renewed", zap.Int64("payment_id", renewed.ID), zap.String("session_id", renewed.SessionID))
	return renewed, nil
}

func (s *paymentService) ReconcileSession(ctx context.Context, sessionID string) (*ReconcileResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.NewValidationError("session_id", "This field is required.")
	}

	payment, err := s.paymentBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if payment.Status == domain.PaymentStatusPaid {
		return &ReconcileResult{Payment: payment, Settled: true}, nil
	}

	status, err := s.provider.GetSessionStatus(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to fetch session status", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	var target domain.PaymentStatus
	switch status {
	case domain.SessionStatusPaid:
		target = domain.PaymentStatusPaid
	case domain.SessionStatusExpired:
		target = domain.PaymentStatusExpired
	default:
		return &ReconcileResult{Payment: payment, Settled: false}, nil
	}
	if payment.Status == target {
		return &ReconcileResult{Payment: payment, Settled: true}, nil
	}

	var (
		moved     bool
		borrowing *domain.Borrowing
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		moved, err = s.paymentRepo.TransitionStatusTx(ctx, q, payment.ID, payment.Status, target)
		if err != nil {
			return err
		}
		if !moved {
			payment, err = s.paymentRepo.GetByIDTx(ctx, q, payment.ID)
			return err
		}
		payment.Status = target
		borrowing, err = s.borrowingRepo.GetByIDTx(ctx, q, payment.BorrowingID)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to reconcile payment", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("failed to reconcile session %s: %w", sessionID, err)
	}

	if moved {
		s.logger.Info("Payment reconciled",
			zap.Int64("payment_id", payment.ID),
			zap.String("session_id", sessionID),
			zap.String("status", string(target)))
		if target == domain.PaymentStatusPaid {
			s.notifier.Send(ctx, notify.PaymentReceived(borrowing, payment))
		}
	}
	return &ReconcileResult{Payment: payment, Settled: true}, nil
}

func (s *paymentService) UnresolvedForUser(ctx context.Context, userID int64) ([]domain.Payment, error) {
	var unresolved []domain.Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		unresolved, err = s.paymentRepo.ListUnresolvedByUserTx(ctx, q, userID)
		return err
	})
	return unresolved, err
}

func (s *paymentService) GetPayment(ctx context.Context, caller domain.Caller, id int64) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		payment, _, err = s.loadVisible(ctx, q, caller, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *paymentService) ListPayments(ctx context.Context, caller domain.Caller, filter domain.PaymentFilter) ([]domain.Payment, error) {
	if !caller.IsStaff {
		filter.UserID = &caller.UserID
	}
	return s.paymentRepo.List(ctx, filter)
}

func (s *paymentService) CancelNotice() string {
	return cancelNotice
}

// loadVisible returns the payment and its borrowing, hiding payments of other
// patrons behind ErrPaymentNotFound.
func (s *paymentService) loadVisible(ctx context.Context, q domain.Querier, caller domain.Caller, id int64) (*domain.Payment, *domain.Borrowing, error) {
	payment, err := s.paymentRepo.GetByIDTx(ctx, q, id)
	if err != nil {
		return nil, nil, err
	}
	borrowing, err := s.borrowingRepo.GetByIDTx(ctx, q, payment.BorrowingID)
	if err != nil {
		return nil, nil, err
	}
	if !caller.CanSee(borrowing.UserID) {
		return nil, nil, domain.ErrPaymentNotFound
	}
	return payment, borrowing, nil
}

func (s *paymentService) paymentBySession(ctx context.Context, sessionID string) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		payment, err = s.paymentRepo.GetBySessionIDTx(ctx, q, sessionID)
		return err
	})
	return payment, err
}
