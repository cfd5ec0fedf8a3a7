package overdue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"library/internal/domain"
	"library/internal/fees"
)

const nothingOverdueMessage = "🎉 <b>No borrowings overdue today!</b>"

type Classification int

const (
	NotDue Classification = iota
	DueTomorrow
	DueToday
	Overdue
)

func (c Classification) String() string {
	switch c {
	case DueTomorrow:
		return "due_tomorrow"
	case DueToday:
		return "due_today"
	case Overdue:
		return "overdue"
	default:
		return "not_due"
	}
}

// Classify compares an expected return date with today, both as calendar dates.
func Classify(expectedReturnDate, today time.Time) Classification {
	switch days := fees.DaysBetween(today, expectedReturnDate); {
	case days < 0:
		return Overdue
	case days == 0:
		return DueToday
	case days == 1:
		return DueTomorrow
	default:
		return NotDue
	}
}

type BorrowingLister interface {
	List(ctx context.Context, filter domain.BorrowingFilter) ([]domain.Borrowing, error)
}

type Report struct {
	Scanned  int
	Notified int
}

// Monitor sends return reminders and overdue alerts for active borrowings.
type Monitor struct {
	borrowings BorrowingLister
	notifier   domain.Notifier
	clock      domain.Clock
	logger     *zap.Logger
}

func NewMonitor(borrowings BorrowingLister, notifier domain.Notifier, clock domain.Clock, logger *zap.Logger) *Monitor {
	return &Monitor{
		borrowings: borrowings,
		notifier:   notifier,
		clock:      clock,
		logger:     logger.With(zap.String("component", "overdue_monitor")),
	}
}

func (m *Monitor) Sweep(ctx context.Context) (Report, error) {
	today := m.clock.Today()
	active := true

	borrowings, err := m.borrowings.List(ctx, domain.BorrowingFilter{IsActive: &active})
	if err != nil {
		m.logger.Error("Failed to list active borrowings", zap.Error(err))
		return Report{}, fmt.Errorf("overdue sweep: %w", err)
	}

	report := Report{Scanned: len(borrowings)}
	for i := range borrowings {
		b := &borrowings[i]
		class := Classify(b.ExpectedReturnDate, today)
		if class == NotDue {
			continue
		}
		m.notifier.Send(ctx, message(b, class, today))
		report.Notified++
		m.logger.Debug("Borrowing classified",
			zap.Int64("borrowing_id", b.ID),
			zap.Stringer("classification", class))
	}

	if report.Notified == 0 {
		m.notifier.Send(ctx, nothingOverdueMessage)
	}

	m.logger.Info("Overdue sweep finished", zap.Int("scanned", report.Scanned), zap.Int("notified", report.Notified))
	return report, nil
}

func message(b *domain.Borrowing, class Classification, today time.Time) string {
	switch class {
	case DueToday:
		return fmt.Sprintf("⚠️ <b>Return Reminder</b>\nUser <b>%s</b> should return the book <b>%s</b> <b>today</b>.",
			b.Borrower(), b.BookTitle())
	case DueTomorrow:
		return fmt.Sprintf("⚠️ <b>Return Reminder</b>\nUser <b>%s</b> should return the book <b>%s</b> <b>tomorrow</b>.",
			b.Borrower(), b.BookTitle())
	default:
		days := fees.OverdueDays(b.ExpectedReturnDate, today)
		fee := "0.00"
		if b.Book != nil {
			fee = fees.OverdueFee(b.Book.DailyFee, days).StringFixed(2)
		}
		return fmt.Sprintf("⚠️ <b>Overdue Alert</b>\nUser <b>%s</b> should return the overdue book <b>%s</b> as soon as possible!\n\nDue date: %s\nOverdue: %d days\nFee: $%s",
			b.Borrower(), b.BookTitle(), b.ExpectedReturnDate.Format("2006-01-02"), days, fee)
	}
}
