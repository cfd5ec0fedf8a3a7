package http_handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"library/internal/app/borrowings"
	"library/internal/app/catalog"
	"library/internal/app/payments"
	"library/internal/domain"
	http_handler "library/internal/handler/http"
	"library/internal/handler/http/middleware"
	"library/internal/testutil"
	"library/internal/testutil/memstore"
)

const secret = "router-test-secret"

type harness struct {
	t        *testing.T
	store    *memstore.Store
	provider *testutil.FakeProvider
	router   http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()
	provider := testutil.NewFakeProvider()
	notifier := &testutil.RecordingNotifier{}
	logger := zap.NewNop()
	clock := testutil.FixedClock(2024, time.March, 1)

	paymentService := payments.NewPaymentService(
		payments.Config{SuccessURL: "http://lib.test/payments/success", CancelURL: "http://lib.test/payments/cancel"},
		store, store.Payments(), store.Borrowings(), provider, notifier, logger,
	)
	services := http_handler.Services{
		Catalog:    catalog.NewCatalogService(store, store.Books(), logger),
		Borrowings: borrowings.NewBorrowingService(store, store.Books(), store.Borrowings(), store.Payments(), paymentService, notifier, clock, logger),
		Payments:   paymentService,
	}
	router := http_handler.NewRouter(services, middleware.NewAuthenticator(secret, logger), []string{"*"}, logger)
	return &harness{t: t, store: store, provider: provider, router: router}
}

func (h *harness) token(userID int64, staff bool) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		UserID:  userID,
		Email:   "user@example.com",
		IsStaff: staff,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(h.t, err)
	return token
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/books", "/borrowings", "/payments"} {
		rec := h.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestCreateBook_StaffOnly(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{"title": "Dune", "author": "Frank Herbert", "cover": "HARD", "copies": 1, "daily_fee": "1.00"}

	rec := h.do(http.MethodPost, "/books", h.token(7, false), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/books", h.token(1, true), body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "1.00", decode(t, rec)["daily_fee"])

	rec = h.do(http.MethodPost, "/books", h.token(1, true), body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	body["title"] = "Cheap"
	body["daily_fee"] = "0.10"
	rec = h.do(http.MethodPost, "/books", h.token(1, true), body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec), "daily_fee")
}

func TestBorrowingFlow(t *testing.T) {
	// arrange
	h := newHarness(t)
	book := h.store.AddBook(domain.Book{Title: "Dune", Author: "Frank Herbert", Cover: domain.CoverHard, Copies: 1, DailyFee: decimal.RequireFromString("1.00")})
	patron := h.token(7, false)

	// borrow
	rec := h.do(http.MethodPost, "/borrowings", patron, map[string]any{"book": book.ID, "expected_return_date": "2024-03-04"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "https://checkout.test/cs_test_1", created["stripe_session_url"])
	payment := created["payment"].(map[string]any)
	assert.Equal(t, "3.00", payment["amount_to_pay"])
	borrowing := created["borrowing"].(map[string]any)
	borrowingID := int64(borrowing["id"].(float64))

	// second borrow is soft-blocked by the pending payment
	rec = h.do(http.MethodPost, "/borrowings", patron, map[string]any{"book": book.ID, "expected_return_date": "2024-03-04"})
	require.Equal(t, http.StatusOK, rec.Code)
	blocked := decode(t, rec)
	assert.Equal(t, []any{"https://checkout.test/cs_test_1"}, blocked["session_urls"])

	// another patron finds no copies left
	rec = h.do(http.MethodPost, "/borrowings", h.token(8, false), map[string]any{"book": book.ID, "expected_return_date": "2024-03-04"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec), "book")

	// and cannot see or return the borrowing
	rec = h.do(http.MethodGet, "/borrowings/"+itoa(borrowingID), h.token(8, false), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// pay
	h.provider.SetStatus("cs_test_1", domain.SessionStatusPaid)
	rec = h.do(http.MethodGet, "/payments/success?session_id=cs_test_1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payment was successful!", decode(t, rec)["detail"])

	// return
	rec = h.do(http.MethodPost, "/borrowings/"+itoa(borrowingID)+"/return", patron, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	returned := decode(t, rec)
	assert.Equal(t, "0.00", returned["overdue_fee"])
	assert.Equal(t, false, returned["borrowing"].(map[string]any)["is_active"])

	rec = h.do(http.MethodPost, "/borrowings/"+itoa(borrowingID)+"/return", patron, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec), "is_active")

	// listing
	rec = h.do(http.MethodGet, "/borrowings?is_active=false", patron, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestBorrowWhileProviderDown(t *testing.T) {
	// arrange
	h := newHarness(t)
	book := h.store.AddBook(domain.Book{Title: "Dune", Copies: 2, DailyFee: decimal.NewFromInt(1)})
	patron := h.token(7, false)
	h.provider.CreateErr = errors.New("stripe unreachable")

	// first borrowing is committed without a session
	rec := h.do(http.MethodPost, "/borrowings", patron, map[string]any{"book": book.ID, "expected_return_date": "2024-03-04"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payment := decode(t, rec)["payment"].(map[string]any)
	assert.Equal(t, "EXPIRED", payment["payment_status"])
	assert.Equal(t, "", payment["session_url"])

	// the soft block still tells the patron which payment to renew
	rec = h.do(http.MethodPost, "/borrowings", patron, map[string]any{"book": book.ID, "expected_return_date": "2024-03-04"})
	require.Equal(t, http.StatusOK, rec.Code)
	blocked := decode(t, rec)
	assert.NotContains(t, blocked, "session_urls")
	unresolved := blocked["unresolved_payments"].([]any)
	require.Len(t, unresolved, 1)
	ref := unresolved[0].(map[string]any)
	assert.Equal(t, payment["id"], ref["id"])
	assert.Equal(t, "EXPIRED", ref["payment_status"])
	assert.Equal(t, "3.00", ref["amount_to_pay"])

	// act
	h.provider.CreateErr = nil
	rec = h.do(http.MethodPatch, "/payments/"+itoa(int64(ref["id"].(float64)))+"/renew", patron, nil)

	// assert
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://checkout.test/cs_test_1", decode(t, rec)["stripe_session_url"])
	assert.Equal(t, 1, h.store.Book(book.ID).Copies)
}

func TestCreateBorrowing_BadInput(t *testing.T) {
	h := newHarness(t)
	book := h.store.AddBook(domain.Book{Title: "Dune", Copies: 1, DailyFee: decimal.NewFromInt(1)})

	rec := h.do(http.MethodPost, "/borrowings", h.token(7, false), map[string]any{"book": book.ID, "expected_return_date": "04/03/2024"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec), "expected_return_date")

	rec = h.do(http.MethodPost, "/borrowings", h.token(7, false), map[string]any{"book": book.ID, "expected_return_date": "2024-03-01"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec), "expected_return_date")

	rec = h.do(http.MethodPost, "/borrowings", h.token(7, false), map[string]any{"book": 999, "expected_return_date": "2024-03-05"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenewPayment(t *testing.T) {
	// arrange
	h := newHarness(t)
	book := h.store.AddBook(domain.Book{Title: "Dune", Copies: 1, DailyFee: decimal.NewFromInt(1)})
	borrowing := h.store.AddBorrowing(domain.Borrowing{UserID: 7, BookID: book.ID, IsActive: true, BorrowDate: testutil.Date(2024, 2, 1), ExpectedReturnDate: testutil.Date(2024, 2, 3)})
	expired := h.store.AddPayment(domain.Payment{BorrowingID: borrowing.ID, Type: domain.PaymentTypeBorrowing, Status: domain.PaymentStatusExpired, AmountToPay: decimal.NewFromInt(2)})
	patron := h.token(7, false)

	// act
	rec := h.do(http.MethodPatch, "/payments/"+itoa(expired.ID)+"/renew", patron, nil)

	// assert
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://checkout.test/cs_test_1", decode(t, rec)["stripe_session_url"])

	rec = h.do(http.MethodPatch, "/payments/"+itoa(expired.ID)+"/renew", patron, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPatch, "/payments/"+itoa(expired.ID)+"/renew", h.token(9, false), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentsListAndRedirects(t *testing.T) {
	h := newHarness(t)
	book := h.store.AddBook(domain.Book{Title: "Dune", Copies: 1, DailyFee: decimal.NewFromInt(1)})
	mine := h.store.AddBorrowing(domain.Borrowing{UserID: 7, BookID: book.ID, IsActive: true, BorrowDate: testutil.Date(2024, 2, 1), ExpectedReturnDate: testutil.Date(2024, 2, 3)})
	theirs := h.store.AddBorrowing(domain.Borrowing{UserID: 8, BookID: book.ID, IsActive: true, BorrowDate: testutil.Date(2024, 2, 1), ExpectedReturnDate: testutil.Date(2024, 2, 3)})
	h.store.AddPayment(domain.Payment{BorrowingID: mine.ID, Type: domain.PaymentTypeBorrowing, Status: domain.PaymentStatusPaid, AmountToPay: decimal.NewFromInt(2)})
	h.store.AddPayment(domain.Payment{BorrowingID: theirs.ID, Type: domain.PaymentTypeBorrowing, Status: domain.PaymentStatusPending, AmountToPay: decimal.NewFromInt(2)})

	var list []map[string]any
	rec := h.do(http.MethodGet, "/payments", h.token(7, false), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = h.do(http.MethodGet, "/payments?status=pending", h.token(1, true), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = h.do(http.MethodGet, "/payments?status=LOST", h.token(1, true), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/payments/success?session_id=cs_missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/payments/cancel?session_id=cs_missing", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "24 hours")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
