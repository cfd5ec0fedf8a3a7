// Package memstore is an in-memory stand-in for the Postgres repositories.
// Transactions are serialized and rolled back by restoring a snapshot.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"library/internal/domain"
)

type Store struct {
	txMu sync.Mutex

	mu         sync.Mutex
	books      map[int64]domain.Book
	borrowings map[int64]domain.Borrowing
	payments   map[int64]domain.Payment
	outbox     []domain.OutboxMessage
	nextID     int64
	failures   map[string]error
	now        func() time.Time
}

func New() *Store {
	return &Store{
		books:      make(map[int64]domain.Book),
		borrowings: make(map[int64]domain.Borrowing),
		payments:   make(map[int64]domain.Payment),
		failures:   make(map[string]error),
		now:        time.Now,
	}
}

type snapshot struct {
	books      map[int64]domain.Book
	borrowings map[int64]domain.Borrowing
	payments   map[int64]domain.Payment
	outbox     []domain.OutboxMessage
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		books:      make(map[int64]domain.Book, len(s.books)),
		borrowings: make(map[int64]domain.Borrowing, len(s.borrowings)),
		payments:   make(map[int64]domain.Payment, len(s.payments)),
		outbox:     append([]domain.OutboxMessage(nil), s.outbox...),
	}
	for k, v := range s.books {
		snap.books[k] = v
	}
	for k, v := range s.borrowings {
		snap.borrowings[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = snap.books
	s.borrowings = snap.borrowings
	s.payments = snap.payments
	s.outbox = snap.outbox
}

// WithinTx implements domain.Transactor. Transactions must not be nested.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, q domain.Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// FailOn makes every later call of the named repository method return err.
// Pass a nil err to clear it.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// failure must be called with mu held.
func (s *Store) failure(method string) error {
	return s.failures[method]
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) AddBook(b domain.Book) domain.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.id()
	s.books[b.ID] = b
	return b
}

func (s *Store) AddBorrowing(b domain.Borrowing) domain.Borrowing {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.id()
	b.Book = nil
	s.borrowings[b.ID] = b
	return s.withBook(b)
}

func (s *Store) AddPayment(p domain.Payment) domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
		p.UpdatedAt = p.CreatedAt
	}
	s.payments[p.ID] = p
	return p
}

func (s *Store) Book(id int64) domain.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[id]
}

func (s *Store) Borrowing(id int64) domain.Borrowing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withBook(s.borrowings[id])
}

func (s *Store) AllBorrowings() []domain.Borrowing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Borrowing, 0, len(s.borrowings))
	for _, b := range s.borrowings {
		out = append(out, s.withBook(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Payment(id int64) domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[id]
}

func (s *Store) AllPayments() []domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedPayments(func(domain.Payment) bool { return true })
}

func (s *Store) OutboxMessages() []domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxMessage(nil), s.outbox...)
}

func (s *Store) withBook(b domain.Borrowing) domain.Borrowing {
	if book, ok := s.books[b.BookID]; ok {
		b.Book = &book
	}
	return b
}

func (s *Store) sortedPayments(keep func(domain.Payment) bool) []domain.Payment {
	var out []domain.Payment
	for _, p := range s.payments {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
