package payments_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"library/internal/app/payments"
)

// RegisterRoutes mounts the payment endpoints. The provider redirect targets
// are public; everything else goes through authn.
func RegisterRoutes(r chi.Router, s payments.PaymentService, authn func(http.Handler) http.Handler, l *zap.Logger) {
	handler := NewPaymentHandler(s, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Route("/payments", func(r chi.Router) {
		r.Get("/success", handler.PaymentSuccessHandler)
		r.Get("/cancel", handler.PaymentCancelHandler)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Get("/", handler.ListPaymentsHandler)
			r.Get("/{id}", handler.GetPaymentHandler)
			r.Patch("/{id}/renew", handler.RenewPaymentHandler)
		})
	})
}
