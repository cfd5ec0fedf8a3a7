package books_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"library/internal/app/catalog"
	"library/internal/handler/http/middleware"
)

func RegisterRoutes(r chi.Router, s catalog.CatalogService, l *zap.Logger) {
	handler := NewBookHandler(s, l.With(zap.String("component", "BookHTTPHandler")))

	r.Route("/books", func(r chi.Router) {
		r.Get("/", handler.ListBooksHandler)
		r.Get("/{id}", handler.GetBookHandler)
		r.With(middleware.RequireStaff).Post("/", handler.CreateBookHandler)
	})
}
