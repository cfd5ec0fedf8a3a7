package borrowings

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"library/internal/app/payments"
	"library/internal/domain"
	"library/internal/fees"
	"library/internal/repository/books_repo"
	"library/internal/repository/borrowings_repo"
	"library/internal/repository/payments_repo"
)

const unresolvedDetail = "To make a new borrowing, you need to pay for unpaid checkout session."

type BorrowingService interface {
	CreateBorrowing(ctx context.Context, caller domain.Caller, req CreateBorrowingRequest) (*CreateBorrowingResult, error)
	ReturnBorrowing(ctx context.Context, caller domain.Caller, borrowingID int64) (*ReturnBorrowingResult, error)
	GetBorrowing(ctx context.Context, caller domain.Caller, id int64) (*domain.Borrowing, error)
	ListBorrowings(ctx context.Context, caller domain.Caller, filter domain.BorrowingFilter) ([]domain.Borrowing, error)
}

type borrowingService struct {
	tx             domain.Transactor
	bookRepo       books_repo.BookRepository
	borrowingRepo  borrowings_repo.BorrowingRepository
	paymentRepo    payments_repo.PaymentRepository
	paymentService payments.PaymentService
	notifier       domain.Notifier
	clock          domain.Clock
	logger         *zap.Logger
}

func NewBorrowingService(
	tx domain.Transactor,
	bookRepo books_repo.BookRepository,
	borrowingRepo borrowings_repo.BorrowingRepository,
	paymentRepo payments_repo.PaymentRepository,
	paymentService payments.PaymentService,
	notifier domain.Notifier,
	clock domain.Clock,
	logger *zap.Logger,
) BorrowingService {
	return &borrowingService{
		tx:             tx,
		bookRepo:       bookRepo,
		borrowingRepo:  borrowingRepo,
		paymentRepo:    paymentRepo,
		paymentService: paymentService,
		notifier:       notifier,
		clock:          clock,
		logger:         logger.With(zap.String("component", "borrowing_service")),
	}
}

func (s *borrowingService) CreateBorrowing(ctx context.Context, caller domain.Caller, req CreateBorrowingRequest) (*CreateBorrowingResult, error) {
	today := s.clock.Today()
	expected := domain.DateOf(req.ExpectedReturnDate)

	var (
		unresolved []domain.Payment
		borrowing  *domain.Borrowing
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		unresolved, err = s.paymentRepo.ListUnresolvedByUserTx(ctx, q, caller.UserID)
		if err != nil {
			return err
		}
		if len(unresolved) > 0 {
			return nil
		}

		if !expected.After(today) {
			return domain.ErrReturnDateNotAfterBorrowDate
		}

		book, err := s.bookRepo.GetForUpdateTx(ctx, q, req.BookID)
		if err != nil {
			return err
		}
		if book.Copies <= 0 {
			return domain.ErrNoAvailableCopies
		}

		borrowing = &domain.Borrowing{
			UserID:             caller.UserID,
			UserEmail:          caller.Email,
			BookID:             book.ID,
			BorrowDate:         today,
			ExpectedReturnDate: expected,
		}
		if err := s.borrowingRepo.CreateTx(ctx, q, borrowing); err != nil {
			return err
		}
		if err := s.bookRepo.AdjustCopiesTx(ctx, q, book.ID, -1); err != nil {
			return err
		}
		book.Copies--
		borrowing.Book = book
		return nil
	})
	if err != nil {
		s.logger.Warn("Borrowing not created",
			zap.Int64("user_id", caller.UserID),
			zap.Int64("book_id", req.BookID),
			zap.Error(err))
		return nil, err
	}

	if len(unresolved) > 0 {
		s.logger.Info("Borrowing refused, unresolved payments",
			zap.Int64("user_id", caller.UserID),
			zap.Int64s("payment_ids", lo.Map(unresolved, func(p domain.Payment, _ int) int64 { return p.ID })))
		s.notifier.Send(ctx, unpaidSessionMessage(caller, unresolved[0]))
		return &CreateBorrowingResult{UnresolvedPayments: unresolved, Detail: unresolvedDetail}, nil
	}

	s.logger.Info("Borrowing created",
		zap.Int64("borrowing_id", borrowing.ID),
		zap.Int64("user_id", borrowing.UserID),
		zap.Int64("book_id", borrowing.BookID))

	result := &CreateBorrowingResult{Borrowing: borrowing}
	price := fees.BorrowingPrice(borrowing.Book.DailyFee, borrowing.BorrowDate, borrowing.ExpectedReturnDate)
	result.Payment, result.SettlementErr = s.paymentService.OpenSession(ctx, borrowing, price, domain.PaymentTypeBorrowing)
	if result.SettlementErr != nil {
		s.logger.Error("Borrowing committed without an open checkout session",
			zap.Int64("borrowing_id", borrowing.ID),
			zap.Error(result.SettlementErr))
	}

	s.notifier.Send(ctx, newBorrowingMessage(borrowing, result.Payment))
	return result, nil
}

func (s *borrowingService) ReturnBorrowing(ctx context.Context, caller domain.Caller, borrowingID int64) (*ReturnBorrowingResult, error) {
	today := s.clock.Today()

	var borrowing *domain.Borrowing
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		borrowing, err = s.borrowingRepo.GetForUpdateTx(ctx, q, borrowingID)
		if err != nil {
			return err
		}
		if !caller.CanSee(borrowing.UserID) {
			return domain.ErrBorrowingNotFound
		}
		if !borrowing.IsActive {
			return domain.ErrAlreadyReturned
		}

		if err := s.bookRepo.AdjustCopiesTx(ctx, q, borrowing.BookID, 1); err != nil {
			return err
		}
		if err := s.borrowingRepo.MarkReturnedTx(ctx, q, borrowing.ID, today); err != nil {
			return err
		}
		borrowing.ActualReturnDate = &today
		borrowing.IsActive = false
		if borrowing.Book != nil {
			borrowing.Book.Copies++
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Borrowing not returned", zap.Int64("borrowing_id", borrowingID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Borrowing returned", zap.Int64("borrowing_id", borrowing.ID), zap.Time("return_date", today))

	result := &ReturnBorrowingResult{Borrowing: borrowing}
	if borrowing.Book != nil {
		result.OverdueFee = fees.OverdueFee(borrowing.Book.DailyFee, fees.OverdueDays(borrowing.ExpectedReturnDate, today))
	}
	if result.OverdueFee.IsPositive() {
		result.Payment, result.SettlementErr = s.paymentService.OpenSession(ctx, borrowing, result.OverdueFee, domain.PaymentTypeOverdueFee)
		if result.SettlementErr != nil {
			s.logger.Error("Return committed without an open overdue fee session",
				zap.Int64("borrowing_id", borrowing.ID),
				zap.Error(result.SettlementErr))
		}
	}

	s.notifier.Send(ctx, returnMessage(borrowing, result.Payment))
	return result, nil
}

func (s *borrowingService) GetBorrowing(ctx context.Context, caller domain.Caller, id int64) (*domain.Borrowing, error) {
	var borrowing *domain.Borrowing
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		borrowing, err = s.borrowingRepo.GetByIDTx(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !caller.CanSee(borrowing.UserID) {
		return nil, domain.ErrBorrowingNotFound
	}
	return borrowing, nil
}

func (s *borrowingService) ListBorrowings(ctx context.Context, caller domain.Caller, filter domain.BorrowingFilter) ([]domain.Borrowing, error) {
	if !caller.IsStaff {
		filter.UserID = &caller.UserID
	}
	borrowings, err := s.borrowingRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list borrowings: %w", err)
	}
	return borrowings, nil
}

func unpaidSessionMessage(caller domain.Caller, p domain.Payment) string {
	who := caller.Email
	if who == "" {
		who = fmt.Sprintf("user #%d", caller.UserID)
	}
	msg := fmt.Sprintf("⚠️ <b>Warning</b>\nUser <b>%s</b> has unpaid checkout session:\n%s $%s (%s)",
		who, p.Type.Label(), p.AmountToPay.StringFixed(2), p.Status)
	if p.SessionURL != "" {
		msg += fmt.Sprintf("\n<a href='%s'><b>Pay Now</b></a>", p.SessionURL)
	}
	return msg
}

func newBorrowingMessage(b *domain.Borrowing, p *domain.Payment) string {
	msg := fmt.Sprintf("📙 <b>Borrowing</b>\nUser <b>%s</b> has borrowed the book: <b>%s</b> on %s.\nExpected return date: %s.",
		b.Borrower(), b.BookTitle(), b.BorrowDate.Format(dateLayout), b.ExpectedReturnDate.Format(dateLayout))
	return msg + payLink(p)
}

func returnMessage(b *domain.Borrowing, p *domain.Payment) string {
	msg := fmt.Sprintf("📗 <b>Returning</b>\nUser <b>%s</b> has returned the book: <b>%s</b> on %s.",
		b.Borrower(), b.BookTitle(), b.ActualReturnDate.Format(dateLayout))
	if p != nil {
		msg += fmt.Sprintf("\nOverdue fee: $%s", p.AmountToPay.StringFixed(2))
	}
	return msg + payLink(p)
}

func payLink(p *domain.Payment) string {
	switch {
	case p == nil:
		return ""
	case p.SessionURL == "":
		return "\nPayment session could not be opened, renewal required."
	default:
		return fmt.Sprintf("\n<a href='%s'><b>Pay</b></a>", p.SessionURL)
	}
}

const dateLayout = "2006-01-02"
