package borrowings_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"library/internal/app/borrowings"
)

func RegisterRoutes(r chi.Router, s borrowings.BorrowingService, l *zap.Logger) {
	handler := NewBorrowingHandler(s, l.With(zap.String("component", "BorrowingHTTPHandler")))

	r.Route("/borrowings", func(r chi.Router) {
		r.Get("/", handler.ListBorrowingsHandler)
		r.Post("/", handler.CreateBorrowingHandler)
		r.Get("/{id}", handler.GetBorrowingHandler)
		r.Post("/{id}/return", handler.ReturnBorrowingHandler)
	})
}
