package http_handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"library/internal/app/borrowings"
	"library/internal/app/catalog"
	"library/internal/app/payments"
	books_http "library/internal/handler/http/books"
	borrowings_http "library/internal/handler/http/borrowings"
	"library/internal/handler/http/middleware"
	payments_http "library/internal/handler/http/payments"
)

type Services struct {
	Catalog    catalog.CatalogService
	Borrowings borrowings.BorrowingService
	Payments   payments.PaymentService
}

func NewRouter(s Services, auth *middleware.Authenticator, corsOrigins []string, l *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Library service is healthy!"))
	})

	payments_http.RegisterRoutes(r, s.Payments, auth.Authenticate, l)

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)
		books_http.RegisterRoutes(r, s.Catalog, l)
		borrowings_http.RegisterRoutes(r, s.Borrowings, l)
	})

	return r
}
