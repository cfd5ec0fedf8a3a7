package payments_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"library/internal/app/payments"
	"library/internal/domain"
	"library/internal/testutil"
	"library/internal/testutil/memstore"
)

type fixture struct {
	store    *memstore.Store
	provider *testutil.FakeProvider
	notifier *testutil.RecordingNotifier
	service  payments.PaymentService

	borrowing domain.Borrowing
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	provider := testutil.NewFakeProvider()
	notifier := &testutil.RecordingNotifier{}

	book := store.AddBook(domain.Book{Title: "Dune", Author: "Frank Herbert", Cover: domain.CoverHard, Copies: 2, DailyFee: decimal.RequireFromString("1.00")})
	borrowing := store.AddBorrowing(domain.Borrowing{
		UserID:             7,
		UserEmail:          "patron@example.com",
		BookID:             book.ID,
		BorrowDate:         testutil.Date(2024, 3, 1),
		ExpectedReturnDate: testutil.Date(2024, 3, 4),
		IsActive:           true,
	})

	service := payments.NewPaymentService(
		payments.Config{SuccessURL: "https://lib.test/payments/success", CancelURL: "https://lib.test/payments/cancel"},
		store,
		store.Payments(),
		store.Borrowings(),
		provider,
		notifier,
		zap.NewNop(),
	)
	return &fixture{store: store, provider: provider, notifier: notifier, service: service, borrowing: borrowing}
}

func TestOpenSession_CreatesPendingPayment(t *testing.T) {
	// arrange
	f := newFixture(t)

	// act
	payment, err := f.service.OpenSession(context.Background(), &f.borrowing, decimal.RequireFromString("3"), domain.PaymentTypeBorrowing)

	// assert
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.Equal(t, "cs_test_1", payment.SessionID)
	assert.Equal(t, "https://checkout.test/cs_test_1", payment.SessionURL)
	assert.Equal(t, "3.00", payment.AmountToPay.StringFixed(2))

	reqs := f.provider.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Borrowing payment for Dune", reqs[0].Description)
	assert.Equal(t, "usd", reqs[0].Currency)
	assert.Equal(t, "https://lib.test/payments/success?session_id={CHECKOUT_SESSION_ID}", reqs[0].SuccessURL)
	assert.Equal(t, "https://lib.test/payments/cancel?session_id={CHECKOUT_SESSION_ID}", reqs[0].CancelURL)

	assert.Len(t, f.store.AllPayments(), 1)
}

func TestOpenSession_RejectsSecondOpenPaymentOfSameType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)
	require.NoError(t, err)

	_, err = f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)

	assert.ErrorIs(t, err, domain.ErrPaymentAlreadyOpen)
	assert.Len(t, f.store.AllPayments(), 1)
}

func TestOpenSession_DifferentTypesCoexist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)
	require.NoError(t, err)
	_, err = f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(5), domain.PaymentTypeOverdueFee)
	require.NoError(t, err)

	assert.Len(t, f.store.AllPayments(), 2)
}

func TestOpenSession_ProviderFailureStoresExpiredPayment(t *testing.T) {
	// arrange
	f := newFixture(t)
	f.provider.CreateErr = errors.New("connection refused")

	// act
	payment, err := f.service.OpenSession(context.Background(), &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)

	// assert
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	require.NotNil(t, payment)
	assert.Equal(t, domain.PaymentStatusExpired, payment.Status)
	assert.Empty(t, payment.SessionID)

	stored := f.store.Payment(payment.ID)
	assert.Equal(t, domain.PaymentStatusExpired, stored.Status)
}

func TestRenewSession_ReusesRowOfExpiredPayment(t *testing.T) {
	// arrange
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)
	require.NoError(t, err)
	_, err = f.store.Payments().TransitionStatusTx(ctx, nil, first.ID, domain.PaymentStatusPending, domain.PaymentStatusExpired)
	require.NoError(t, err)

	// act
	renewed, err := f.service.RenewSession(ctx, domain.Caller{UserID: 7}, first.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, first.ID, renewed.ID)
	assert.Equal(t, domain.PaymentStatusPending, renewed.Status)
	assert.Equal(t, "cs_test_2", renewed.SessionID)
	assert.True(t, first.AmountToPay.Equal(renewed.AmountToPay))
	assert.Len(t, f.store.AllPayments(), 1)
}

func TestRenewSession_RequiresExpiredStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending, err := f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)
	require.NoError(t, err)
	paid := f.store.AddPayment(domain.Payment{BorrowingID: f.borrowing.ID, Type: domain.PaymentTypeOverdueFee, Status: domain.PaymentStatusPaid, AmountToPay: decimal.NewFromInt(1), SessionID: "cs_paid"})

	_, err = f.service.RenewSession(ctx, domain.Caller{UserID: 7}, pending.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentNotExpired)

	_, err = f.service.RenewSession(ctx, domain.Caller{UserID: 7}, paid.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentNotExpired)

	assert.Len(t, f.provider.Requests(), 1)
}

func TestRenewSession_HidesOtherPatronsPayments(t *testing.T) {
	f := newFixture(t)
	expired := f.store.AddPayment(domain.Payment{BorrowingID: f.borrowing.ID, Type: domain.PaymentTypeBorrowing, Status: domain.PaymentStatusExpired, AmountToPay: decimal.NewFromInt(3)})

	_, err := f.service.RenewSession(context.Background(), domain.Caller{UserID: 99}, expired.ID)

	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestRenewSession_ConcurrentAttemptsKeepSingleRow(t *testing.T) {
	// arrange
	f := newFixture(t)
	expired := f.store.AddPayment(domain.Payment{BorrowingID: f.borrowing.ID, Type: domain.PaymentTypeBorrowing, Status: domain.PaymentStatusExpired, AmountToPay: decimal.NewFromInt(3)})
	staff := domain.Caller{UserID: 1, IsStaff: true}

	// act
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.RenewSession(context.Background(), staff, expired.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrPaymentNotExpired)
			}
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, 1, succeeded)
	all := f.store.AllPayments()
	require.Len(t, all, 1)
	assert.Equal(t, domain.PaymentStatusPending, all[0].Status)
}

func TestReconcileSession_PaidMarksPaymentAndNotifies(t *testing.T) {
	// arrange
	f := newFixture(t)
	ctx := context.Background()
	payment, err := f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)
	require.NoError(t, err)
	f.provider.SetStatus(payment.SessionID, domain.SessionStatusPaid)

	// act
	res, err := f.service.ReconcileSession(ctx, payment.SessionID)

	// assert
	require.NoError(t, err)
	assert.True(t, res.Settled)
	assert.Equal(t, domain.PaymentStatusPaid, res.Payment.Status)
	assert.Equal(t, domain.PaymentStatusPaid, f.store.Payment(payment.ID).Status)

	msgs := f.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "patron@example.com has made borrowing payment $3.00 for the book: 'Dune'")
}

func TestReconcileSession_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payment, err := f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)
	require.NoError(t, err)
	f.provider.SetStatus(payment.SessionID, domain.SessionStatusPaid)

	_, err = f.service.ReconcileSession(ctx, payment.SessionID)
	require.NoError(t, err)
	res, err := f.service.ReconcileSession(ctx, payment.SessionID)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, res.Payment.Status)
	assert.Len(t, f.notifier.Messages(), 1)
}

func TestReconcileSession_OpenSessionLeavesPaymentPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payment, err := f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)
	require.NoError(t, err)

	res, err := f.service.ReconcileSession(ctx, payment.SessionID)

	require.NoError(t, err)
	assert.False(t, res.Settled)
	assert.Equal(t, domain.PaymentStatusPending, f.store.Payment(payment.ID).Status)
	assert.Empty(t, f.notifier.Messages())
}

func TestReconcileSession_ExpiredMarksPaymentExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payment, err := f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)
	require.NoError(t, err)
	f.provider.SetStatus(payment.SessionID, domain.SessionStatusExpired)

	res, err := f.service.ReconcileSession(ctx, payment.SessionID)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusExpired, res.Payment.Status)
	assert.Empty(t, f.notifier.Messages())
}

func TestReconcileSession_PaidOverridesLocalExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payment, err := f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)
	require.NoError(t, err)
	_, err = f.store.Payments().TransitionStatusTx(ctx, nil, payment.ID, domain.PaymentStatusPending, domain.PaymentStatusExpired)
	require.NoError(t, err)
	f.provider.SetStatus(payment.SessionID, domain.SessionStatusPaid)

	res, err := f.service.ReconcileSession(ctx, payment.SessionID)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, res.Payment.Status)
}

func TestReconcileSession_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.ReconcileSession(ctx, "cs_unknown")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	_, err = f.service.ReconcileSession(ctx, " ")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	payment, err := f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)
	require.NoError(t, err)
	f.provider.FailStatus(payment.SessionID, errors.New("timeout"))
	_, err = f.service.ReconcileSession(ctx, payment.SessionID)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, domain.PaymentStatusPending, f.store.Payment(payment.ID).Status)
}

func TestListPayments_PatronSeesOwnOnly(t *testing.T) {
	// arrange
	f := newFixture(t)
	other := f.store.AddBorrowing(domain.Borrowing{UserID: 8, BookID: f.borrowing.BookID, BorrowDate: testutil.Date(2024, 3, 1), ExpectedReturnDate: testutil.Date(2024, 3, 2), IsActive: true})
	mine := f.store.AddPayment(domain.Payment{BorrowingID: f.borrowing.ID, Type: domain.PaymentTypeBorrowing, Status: domain.PaymentStatusPaid})
	theirs := f.store.AddPayment(domain.Payment{BorrowingID: other.ID, Type: domain.PaymentTypeBorrowing, Status: domain.PaymentStatusPending})
	otherUser := int64(8)

	// act
	patronView, err := f.service.ListPayments(context.Background(), domain.Caller{UserID: 7}, domain.PaymentFilter{UserID: &otherUser})
	require.NoError(t, err)
	staffView, err := f.service.ListPayments(context.Background(), domain.Caller{UserID: 1, IsStaff: true}, domain.PaymentFilter{})
	require.NoError(t, err)

	// assert
	require.Len(t, patronView, 1)
	assert.Equal(t, mine.ID, patronView[0].ID)
	assert.Len(t, staffView, 2)

	_, err = f.service.GetPayment(context.Background(), domain.Caller{UserID: 7}, theirs.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	got, err := f.service.GetPayment(context.Background(), domain.Caller{UserID: 7}, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)
}

func TestUnresolvedForUser(t *testing.T) {
	f := newFixture(t)
	f.store.AddPayment(domain.Payment{BorrowingID: f.borrowing.ID, Type: domain.PaymentTypeBorrowing, Status: domain.PaymentStatusPaid})
	expired := f.store.AddPayment(domain.Payment{BorrowingID: f.borrowing.ID, Type: domain.PaymentTypeOverdueFee, Status: domain.PaymentStatusExpired, SessionURL: "https://checkout.test/old"})

	unresolved, err := f.service.UnresolvedForUser(context.Background(), 7)

	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, expired.ID, unresolved[0].ID)
}

func TestCancelNotice(t *testing.T) {
	f := newFixture(t)
	assert.True(t, strings.HasPrefix(f.service.CancelNotice(), "Your payment session is available for 24 hours."))
}

// settlingProvider marks the payment PAID behind the service's back before
// reporting the session status, like a webhook racing the success page.
type settlingProvider struct {
	*testutil.FakeProvider
	settle func()
}

func (p *settlingProvider) GetSessionStatus(ctx context.Context, sessionID string) (domain.SessionStatus, error) {
	p.settle()
	return p.FakeProvider.GetSessionStatus(ctx, sessionID)
}

func TestReconcileSession_ConcurrentSettlementNotifiesOnce(t *testing.T) {
	// arrange
	f := newFixture(t)
	ctx := context.Background()
	payment, err := f.service.OpenSession(ctx, &f.borrowing, decimal.NewFromInt(3), domain.PaymentTypeBorrowing)
	require.NoError(t, err)
	f.provider.SetStatus(payment.SessionID, domain.SessionStatusPaid)

	provider := &settlingProvider{
		FakeProvider: f.provider,
		settle: func() {
			moved, err := f.store.Payments().TransitionStatusTx(ctx, nil, payment.ID, domain.PaymentStatusPending, domain.PaymentStatusPaid)
			require.NoError(t, err)
			require.True(t, moved)
		},
	}
	service := payments.NewPaymentService(
		payments.Config{SuccessURL: "https://lib.test/payments/success", CancelURL: "https://lib.test/payments/cancel"},
		f.store,
		f.store.Payments(),
		f.store.Borrowings(),
		provider,
		f.notifier,
		zap.NewNop(),
	)

	// act
	res, err := service.ReconcileSession(ctx, payment.SessionID)

	// assert
	require.NoError(t, err)
	assert.True(t, res.Settled)
	assert.Equal(t, domain.PaymentStatusPaid, res.Payment.Status)
	assert.Equal(t, domain.PaymentStatusPaid, f.store.Payment(payment.ID).Status)
	assert.Empty(t, f.notifier.Messages())
}
