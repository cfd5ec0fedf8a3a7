package borrowings_http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"library/internal/app/borrowings"
	"library/internal/domain"
	"library/internal/handler/http/response"
)

const settlementFailedDetail = "The payment session could not be opened. Renew the payment to pay."

type BorrowingHandler struct {
	service borrowings.BorrowingService
	logger  *zap.Logger
}

func NewBorrowingHandler(s borrowings.BorrowingService, l *zap.Logger) *BorrowingHandler {
	return &BorrowingHandler{service: s, logger: l}
}

type CreateBorrowingRequest struct {
	BookID             int64  `json:"book"`
	ExpectedReturnDate string `json:"expected_return_date"`
}

type BorrowingCreatedResponse struct {
	Detail           string              `json:"detail"`
	Borrowing        *response.Borrowing `json:"borrowing,omitempty"`
	Payment          *response.Payment   `json:"payment,omitempty"`
	StripeSessionURL string              `json:"stripe_session_url,omitempty"`
	SessionURLs      []string            `json:"session_urls,omitempty"`
	// UnresolvedPayments lists what blocks the caller, with ids for renewal.
	UnresolvedPayments []response.Payment `json:"unresolved_payments,omitempty"`
}

func (h *BorrowingHandler) CreateBorrowingHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := response.Caller(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateBorrowingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, h.logger, http.StatusBadRequest, response.Detail{Detail: "Invalid request body"})
		return
	}
	if req.BookID <= 0 {
		response.Error(w, h.logger, domain.NewValidationError("book", "This field is required."))
		return
	}
	expected, err := time.Parse("2006-01-02", req.ExpectedReturnDate)
	if err != nil {
		response.Error(w, h.logger, domain.NewValidationError("expected_return_date", "Date has wrong format. Use YYYY-MM-DD."))
		return
	}

	res, err := h.service.CreateBorrowing(r.Context(), caller, borrowings.CreateBorrowingRequest{
		BookID:             req.BookID,
		ExpectedReturnDate: expected,
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	if res.Blocked() {
		response.JSON(w, h.logger, http.StatusOK, BorrowingCreatedResponse{
			Detail:             res.Detail,
			SessionURLs:        response.SessionURLs(res.UnresolvedPayments),
			UnresolvedPayments: response.NewPayments(res.UnresolvedPayments),
		})
		return
	}

	body := BorrowingCreatedResponse{Detail: "Borrowing created successfully"}
	b := response.NewBorrowing(res.Borrowing)
	body.Borrowing = &b
	if res.Payment != nil {
		p := response.NewPayment(res.Payment)
		body.Payment = &p
		body.StripeSessionURL = res.Payment.SessionURL
	}
	if res.SettlementErr != nil {
		body.Detail = "Borrowing created. " + settlementFailedDetail
	}
	response.JSON(w, h.logger, http.StatusCreated, body)
}

type BorrowingReturnedResponse struct {
	Detail           string             `json:"detail"`
	Borrowing        response.Borrowing `json:"borrowing"`
	OverdueFee       string             `json:"overdue_fee"`
	Payment          *response.Payment  `json:"payment,omitempty"`
	StripeSessionURL string             `json:"stripe_session_url,omitempty"`
}

func (h *BorrowingHandler) ReturnBorrowingHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := response.Caller(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := response.ParseID(w, h.logger, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	res, err := h.service.ReturnBorrowing(r.Context(), caller, id)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	body := BorrowingReturnedResponse{
		Detail:     "Borrowing returned successfully",
		Borrowing:  response.NewBorrowing(res.Borrowing),
		OverdueFee: res.OverdueFee.StringFixed(2),
	}
	status := http.StatusOK
	if res.Payment != nil {
		p := response.NewPayment(res.Payment)
		body.Payment = &p
		body.StripeSessionURL = res.Payment.SessionURL
		status = http.StatusCreated
	}
	if res.SettlementErr != nil {
		body.Detail = "Borrowing returned. " + settlementFailedDetail
	}
	response.JSON(w, h.logger, status, body)
}

func (h *BorrowingHandler) GetBorrowingHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := response.Caller(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := response.ParseID(w, h.logger, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	borrowing, err := h.service.GetBorrowing(r.Context(), caller, id)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, response.NewBorrowing(borrowing))
}

func (h *BorrowingHandler) ListBorrowingsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := response.Caller(w, r, h.logger)
	if !ok {
		return
	}

	var filter domain.BorrowingFilter
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active, ok := response.ParseBool(raw)
		if !ok {
			response.Error(w, h.logger, domain.NewValidationError("is_active", "Must be true or false."))
			return
		}
		filter.IsActive = &active
	}
	if raw := r.URL.Query().Get("user_id"); raw != "" && caller.IsStaff {
		userID, ok := response.ParseID(w, h.logger, raw)
		if !ok {
			return
		}
		filter.UserID = &userID
	}

	list, err := h.service.ListBorrowings(r.Context(), caller, filter)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, response.NewBorrowings(list))
}
