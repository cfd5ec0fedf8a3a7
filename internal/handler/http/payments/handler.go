package payments_http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"library/internal/app/payments"
	"library/internal/domain"
	"library/internal/handler/http/response"
)

type PaymentHandler struct {
	service payments.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(s payments.PaymentService, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, logger: l}
}

type RenewResponse struct {
	Detail           string           `json:"detail"`
	Payment          response.Payment `json:"payment"`
	StripeSessionURL string           `json:"stripe_session_url"`
}

func (h *PaymentHandler) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := response.Caller(w, r, h.logger)
	if !ok {
		return
	}

	var filter domain.PaymentFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.PaymentStatus(strings.ToUpper(raw))
		switch status {
		case domain.PaymentStatusPending, domain.PaymentStatusPaid, domain.PaymentStatusExpired:
			filter.Status = &status
		default:
			response.Error(w, h.logger, domain.NewValidationError("status", "Must be PENDING, PAID or EXPIRED."))
			return
		}
	}
	if raw := r.URL.Query().Get("user_id"); raw != "" && caller.IsStaff {
		userID, ok := response.ParseID(w, h.logger, raw)
		if !ok {
			return
		}
		filter.UserID = &userID
	}

	list, err := h.service.ListPayments(r.Context(), caller, filter)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, response.NewPayments(list))
}

func (h *PaymentHandler) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := response.Caller(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := response.ParseID(w, h.logger, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	payment, err := h.service.GetPayment(r.Context(), caller, id)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, response.NewPayment(payment))
}

func (h *PaymentHandler) RenewPaymentHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := response.Caller(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := response.ParseID(w, h.logger, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	payment, err := h.service.RenewSession(r.Context(), caller, id)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, RenewResponse{
		Detail:           "Checkout session renewed successfully",
		Payment:          response.NewPayment(payment),
		StripeSessionURL: payment.SessionURL,
	})
}

// PaymentSuccessHandler is the provider's success redirect target.
func (h *PaymentHandler) PaymentSuccessHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ReconcileSession(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	switch {
	case !res.Settled:
		response.JSON(w, h.logger, http.StatusAccepted, response.Detail{Detail: "Payment is not completed yet."})
	case res.Payment.Status == domain.PaymentStatusPaid:
		response.JSON(w, h.logger, http.StatusOK, response.Detail{Detail: "Payment was successful!"})
	default:
		response.JSON(w, h.logger, http.StatusOK, response.Detail{Detail: "Checkout session has expired. Renew the payment to pay."})
	}
}

func (h *PaymentHandler) PaymentCancelHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, h.logger, http.StatusOK, response.Detail{Detail: h.service.CancelNotice()})
}
