package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"library/internal/domain"
)

const dateLayout = "2006-01-02"

type Detail struct {
	Detail string `json:"detail"`
}

func JSON(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

// Error maps a service error to its HTTP status. Validation errors are
// rendered as {"<field>": ["<message>"]}.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *domain.ValidationError
	var perr *domain.ProviderError
	switch {
	case errors.As(err, &verr):
		JSON(w, logger, http.StatusBadRequest, map[string][]string{verr.Field: {verr.Message}})
	case errors.Is(err, domain.ErrBookNotFound),
		errors.Is(err, domain.ErrBorrowingNotFound),
		errors.Is(err, domain.ErrPaymentNotFound):
		JSON(w, logger, http.StatusNotFound, Detail{Detail: err.Error()})
	case errors.Is(err, domain.ErrPaymentNotExpired),
		errors.Is(err, domain.ErrPaymentAlreadyOpen),
		errors.Is(err, domain.ErrBookAlreadyExists):
		JSON(w, logger, http.StatusConflict, Detail{Detail: err.Error()})
	case errors.As(err, &perr):
		logger.Error("Payment provider failure", zap.Error(err))
		JSON(w, logger, http.StatusBadGateway, Detail{Detail: "Payment provider is unavailable, please retry later."})
	default:
		logger.Error("Unhandled error", zap.Error(err))
		JSON(w, logger, http.StatusInternalServerError, Detail{Detail: "Internal server error"})
	}
}

// ParseID reads a positive integer id; ok is false after a 400 was written.
func ParseID(w http.ResponseWriter, logger *zap.Logger, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		JSON(w, logger, http.StatusBadRequest, Detail{Detail: "Invalid id format"})
		return 0, false
	}
	return id, true
}

// ParseBool accepts "true" and "false" in any case; ok is false otherwise.
func ParseBool(raw string) (value bool, ok bool) {
	switch {
	case strings.EqualFold(raw, "true"):
		return true, true
	case strings.EqualFold(raw, "false"):
		return false, true
	}
	return false, false
}

// Caller returns the authenticated caller; ok is false after a 401 was written.
func Caller(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (domain.Caller, bool) {
	caller, ok := domain.CallerFrom(r.Context())
	if !ok {
		JSON(w, logger, http.StatusUnauthorized, Detail{Detail: "Authentication credentials were not provided."})
	}
	return caller, ok
}
