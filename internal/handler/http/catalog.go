package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository"
	"github.com/utafrali/furnishop/internal/service"
	"github.com/utafrali/furnishop/pkg/httputil"
	"github.com/utafrali/furnishop/pkg/pagination"
)

// CatalogHandler serves the public catalog endpoints.
type CatalogHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  logger,
	}
}

// ListProducts handles GET /api/v1/products
// Query: ?category=<uuid>&q=<search>&sort=newest|price-asc|price-desc|name-asc&page=&per_page=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	q := r.URL.Query()

	filter := repository.ProductFilter{
		Sort:    q.Get("sort"),
		Page:    params.Page,
		PerPage: params.PerPage,
	}
	if category := q.Get("category"); category != "" {
		filter.CategoryID = &category
	}
	if search := q.Get("q"); search != "" {
		filter.Search = &search
	}

	products, total, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult[domain.CatalogProduct](products, total, params))
}

// ListCategories handles GET /api/v1/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, categories)
}
