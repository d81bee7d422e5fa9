package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository"
	apperrors "github.com/utafrali/furnishop/pkg/errors"
)

const maxSearchLength = 100

// CatalogService serves the public product listing.
type CatalogService struct {
	repo   repository.ProductRepository
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(repo repository.ProductRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		logger: logger,
	}
}

// ListProducts returns active products matching filter. An empty sort means
// newest first and a blank search is ignored.
func (s *CatalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.CatalogProduct, int, error) {
	if filter.Sort == "" {
		filter.Sort = domain.SortNewest
	}
	if !domain.IsValidCatalogSort(filter.Sort) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid sort %q, must be one of: %s", filter.Sort, strings.Join(domain.CatalogSorts(), ", ")))
	}

	if filter.CategoryID != nil {
		if _, err := uuid.Parse(*filter.CategoryID); err != nil {
			return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid category id %q", *filter.CategoryID))
		}
	}

	if filter.Search != nil {
		search := strings.TrimSpace(*filter.Search)
		switch {
		case search == "":
			filter.Search = nil
		case utf8.RuneCountInString(search) > maxSearchLength:
			return nil, 0, apperrors.InvalidInput(fmt.Sprintf("search must be at most %d characters", maxSearchLength))
		default:
			filter.Search = &search
		}
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// ListCategories returns every category ordered by name.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}
