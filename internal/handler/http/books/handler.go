package books_http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"library/internal/app/catalog"
	"library/internal/domain"
	"library/internal/handler/http/response"
)

type BookHandler struct {
	service catalog.CatalogService
	logger  *zap.Logger
}

func NewBookHandler(s catalog.CatalogService, l *zap.Logger) *BookHandler {
	return &BookHandler{service: s, logger: l}
}

type CreateBookRequest struct {
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	Cover    string          `json:"cover"`
	Copies   int             `json:"copies"`
	DailyFee decimal.Decimal `json:"daily_fee"`
}

func (h *BookHandler) CreateBookHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Invalid request body for CreateBook", zap.Error(err))
		response.JSON(w, h.logger, http.StatusBadRequest, response.Detail{Detail: "Invalid request body"})
		return
	}

	book, err := h.service.CreateBook(r.Context(), catalog.CreateBookRequest{
		Title:    req.Title,
		Author:   req.Author,
		Cover:    domain.CoverType(req.Cover),
		Copies:   req.Copies,
		DailyFee: req.DailyFee,
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusCreated, response.NewBook(book))
}

func (h *BookHandler) GetBookHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := response.ParseID(w, h.logger, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, response.NewBook(book))
}

func (h *BookHandler) ListBooksHandler(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, response.NewBooks(books))
}
