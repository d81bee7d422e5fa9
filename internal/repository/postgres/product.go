package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository"
	"github.com/utafrali/furnishop/pkg/database"
	apperrors "github.com/utafrali/furnishop/pkg/errors"
)

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product reader.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetSnapshot returns the current name, price and images of an active
// product. Inactive products are reported as not found.
func (r *ProductRepository) GetSnapshot(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, price, images
		FROM products
		WHERE id = $1 AND is_active`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Images)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product snapshot: %w", err)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

// sortClauses maps catalog sort orders onto ORDER BY clauses. The id
// tiebreaker keeps pages stable.
var sortClauses = map[string]string{
	domain.SortNewest:    "created_at DESC, id",
	domain.SortPriceAsc:  "price ASC, created_at DESC, id",
	domain.SortPriceDesc: "price DESC, created_at DESC, id",
	domain.SortNameAsc:   "name ASC, id",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns active products matching the filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (_ []domain.CatalogProduct, _ int, err error) {
	conditions := []string{"is_active"}
	var args []any
	argIndex := 1

	if filter.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argIndex))
		args = append(args, *filter.CategoryID)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+likeEscaper.Replace(*filter.Search)+"%")
		argIndex++
	}

	orderBy, ok := sortClauses[filter.Sort]
	if !ok {
		orderBy = sortClauses[domain.SortNewest]
	}

	query := fmt.Sprintf(`
		SELECT id, name, COALESCE(description, ''), price, images, category_id, created_at,
			   count(*) OVER() AS total_count
		FROM products
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), orderBy, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []domain.CatalogProduct{}
	var totalCount int
	for rows.Next() {
		var p domain.CatalogProduct
		if err = rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.Images,
			&p.CategoryID,
			&p.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		if p.Images == nil {
			p.Images = []string{}
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, totalCount, nil
}

// ListCategories returns every category ordered by name.
func (r *ProductRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, slug, image_url
		FROM categories
		ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}

// UpsertCategory inserts a category or overwrites the row with the same ID.
func (r *ProductRepository) UpsertCategory(ctx context.Context, c domain.Category) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO categories (id, name, slug, image_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name       = EXCLUDED.name,
			slug       = EXCLUDED.slug,
			image_url  = EXCLUDED.image_url,
			updated_at = NOW()`,
		c.ID, c.Name, c.Slug, c.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("upsert category %s: %w", c.Slug, err)
	}
	return nil
}

// CatalogEntry is a product row as written by the catalog seeder.
type CatalogEntry struct {
	Product     domain.Product
	Description string
	CategoryID  *string
	Active      bool
}

const upsertProductQuery = `
	INSERT INTO products (id, name, description, price, images, category_id, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		name        = EXCLUDED.name,
		description = EXCLUDED.description,
		price       = EXCLUDED.price,
		images      = EXCLUDED.images,
		category_id = EXCLUDED.category_id,
		is_active   = EXCLUDED.is_active,
		updated_at  = NOW()`

// Upsert inserts a catalog product or overwrites the existing row with the
// same ID. Carts keep the snapshot they took, so price changes only reach
// items added afterwards.
func (r *ProductRepository) Upsert(ctx context.Context, e CatalogEntry) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpsertProduct", upsertProductQuery)
	defer func() { end(err) }()

	images := e.Product.Images
	if images == nil {
		images = []string{}
	}
	if _, err = r.pool.Exec(ctx, upsertProductQuery,
		e.Product.ID, e.Product.Name, e.Description, e.Product.Price, images, e.CategoryID, e.Active,
	); err != nil {
		return fmt.Errorf("upsert product %s: %w", e.Product.ID, err)
	}
	return nil
}
