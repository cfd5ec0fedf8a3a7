package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"library/internal/domain"
	"library/internal/repository/books_repo"
	"library/internal/repository/borrowings_repo"
	"library/internal/repository/outbox_repo"
	"library/internal/repository/payments_repo"
)

var (
	_ books_repo.BookRepository           = (*Books)(nil)
	_ borrowings_repo.BorrowingRepository = (*Borrowings)(nil)
	_ payments_repo.PaymentRepository     = (*Payments)(nil)
	_ outbox_repo.OutboxRepository        = (*Outbox)(nil)
	_ domain.Transactor                   = (*Store)(nil)
)

type Books struct{ s *Store }
type Borrowings struct{ s *Store }
type Payments struct{ s *Store }
type Outbox struct{ s *Store }

func (s *Store) Books() *Books           { return &Books{s} }
func (s *Store) Borrowings() *Borrowings { return &Borrowings{s} }
func (s *Store) Payments() *Payments     { return &Payments{s} }
func (s *Store) Outbox() *Outbox         { return &Outbox{s} }

func (r *Books) CreateTx(ctx context.Context, _ domain.Querier, book *domain.Book) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Books.CreateTx"); err != nil {
		return err
	}
	for _, b := range s.books {
		if b.Title == book.Title && b.Author == book.Author {
			return domain.ErrBookAlreadyExists
		}
	}
	book.ID = s.id()
	s.books[book.ID] = *book
	return nil
}

func (r *Books) GetByIDTx(ctx context.Context, _ domain.Querier, id int64) (*domain.Book, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, domain.ErrBookNotFound
	}
	return &b, nil
}

func (r *Books) GetForUpdateTx(ctx context.Context, q domain.Querier, id int64) (*domain.Book, error) {
	return r.GetByIDTx(ctx, q, id)
}

func (r *Books) AdjustCopiesTx(ctx context.Context, _ domain.Querier, id int64, delta int) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Books.AdjustCopiesTx"); err != nil {
		return err
	}
	b, ok := s.books[id]
	if !ok || b.Copies+delta < 0 {
		return domain.ErrNoAvailableCopies
	}
	b.Copies += delta
	s.books[id] = b
	return nil
}

func (r *Books) List(ctx context.Context) ([]domain.Book, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].Author < out[j].Author
	})
	return out, nil
}

func (r *Borrowings) CreateTx(ctx context.Context, _ domain.Querier, borrowing *domain.Borrowing) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Borrowings.CreateTx"); err != nil {
		return err
	}
	if !borrowing.ExpectedReturnDate.After(borrowing.BorrowDate) {
		return fmt.Errorf("check constraint violated: expected_return_date > borrow_date")
	}
	borrowing.ID = s.id()
	borrowing.IsActive = true
	stored := *borrowing
	stored.Book = nil
	s.borrowings[stored.ID] = stored
	return nil
}

func (r *Borrowings) GetByIDTx(ctx context.Context, _ domain.Querier, id int64) (*domain.Borrowing, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.borrowings[id]
	if !ok {
		return nil, domain.ErrBorrowingNotFound
	}
	b = s.withBook(b)
	return &b, nil
}

func (r *Borrowings) GetForUpdateTx(ctx context.Context, q domain.Querier, id int64) (*domain.Borrowing, error) {
	return r.GetByIDTx(ctx, q, id)
}

func (r *Borrowings) MarkReturnedTx(ctx context.Context, _ domain.Querier, id int64, returnDate time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Borrowings.MarkReturnedTx"); err != nil {
		return err
	}
	b, ok := s.borrowings[id]
	if !ok || !b.IsActive {
		return domain.ErrAlreadyReturned
	}
	b.IsActive = false
	b.ActualReturnDate = &returnDate
	s.borrowings[id] = b
	return nil
}

func (r *Borrowings) List(ctx context.Context, filter domain.BorrowingFilter) ([]domain.Borrowing, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Borrowings.List"); err != nil {
		return nil, err
	}
	var out []domain.Borrowing
	for _, b := range s.borrowings {
		if filter.IsActive != nil && b.IsActive != *filter.IsActive {
			continue
		}
		if filter.UserID != nil && b.UserID != *filter.UserID {
			continue
		}
		out = append(out, s.withBook(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Payments) UpsertSessionTx(ctx context.Context, _ domain.Querier, payment *domain.Payment) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Payments.UpsertSessionTx"); err != nil {
		return err
	}
	now := s.now()
	for id, existing := range s.payments {
		if existing.BorrowingID != payment.BorrowingID || existing.Type != payment.Type {
			continue
		}
		if existing.Status != domain.PaymentStatusExpired {
			return domain.ErrPaymentAlreadyOpen
		}
		existing.Status = payment.Status
		existing.AmountToPay = payment.AmountToPay
		existing.SessionID = payment.SessionID
		existing.SessionURL = payment.SessionURL
		existing.UpdatedAt = now
		s.payments[id] = existing
		*payment = existing
		return nil
	}
	payment.ID = s.id()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	s.payments[payment.ID] = *payment
	return nil
}

func (r *Payments) GetByIDTx(ctx context.Context, _ domain.Querier, id int64) (*domain.Payment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *Payments) GetBySessionIDTx(ctx context.Context, _ domain.Querier, sessionID string) (*domain.Payment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.SessionID != "" && p.SessionID == sessionID {
			return &p, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (r *Payments) TransitionStatusTx(ctx context.Context, _ domain.Querier, id int64, from, to domain.PaymentStatus) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Payments.TransitionStatusTx"); err != nil {
		return false, err
	}
	p, ok := s.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = s.now()
	s.payments[id] = p
	return true, nil
}

func (r *Payments) ListUnresolvedByUserTx(ctx context.Context, _ domain.Querier, userID int64) ([]domain.Payment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedPayments(func(p domain.Payment) bool {
		return p.Status.Unresolved() && s.borrowings[p.BorrowingID].UserID == userID
	}), nil
}

func (r *Payments) ListPendingSessions(ctx context.Context) ([]domain.Payment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Payments.ListPendingSessions"); err != nil {
		return nil, err
	}
	return s.sortedPayments(func(p domain.Payment) bool {
		return p.Status == domain.PaymentStatusPending && p.SessionID != ""
	}), nil
}

func (r *Payments) List(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sortedPayments(func(p domain.Payment) bool {
		if filter.Status != nil && p.Status != *filter.Status {
			return false
		}
		if filter.UserID != nil && s.borrowings[p.BorrowingID].UserID != *filter.UserID {
			return false
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Outbox) CreateMessageTx(ctx context.Context, _ domain.Querier, msg *domain.OutboxMessage) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Outbox.CreateMessageTx"); err != nil {
		return err
	}
	s.outbox = append(s.outbox, *msg)
	return nil
}

func (r *Outbox) GetPendingMessages(ctx context.Context, _ domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OutboxMessage
	for _, m := range s.outbox {
		if m.Status == domain.OutboxStatusPending && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *Outbox) MarkSentTx(ctx context.Context, _ domain.Querier, id string, sentAt time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Outbox.MarkSentTx"); err != nil {
		return err
	}
	for i := range s.outbox {
		if s.outbox[i].ID == id && s.outbox[i].Status == domain.OutboxStatusPending {
			s.outbox[i].Status = domain.OutboxStatusSent
			s.outbox[i].SentAt = &sentAt
			return nil
		}
	}
	return fmt.Errorf("no pending outbox message %s", id)
}
