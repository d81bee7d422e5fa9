package domain

import "time"

// Catalog sort orders accepted by the product listing.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNameAsc   = "name-asc"
)

// Category groups catalog products. ImageURL holds an icon name or a picture.
type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	ImageURL *string `json:"image_url,omitempty"`
}

// CatalogProduct is an active product as shown in the catalog listing.
type CatalogProduct struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Images      []string  `json:"images"`
	CategoryID  *string   `json:"category_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CatalogSorts returns the accepted sort orders, default first.
func CatalogSorts() []string {
	return []string{SortNewest, SortPriceAsc, SortPriceDesc, SortNameAsc}
}

// IsValidCatalogSort reports whether s is one of CatalogSorts.
func IsValidCatalogSort(s string) bool {
	switch s {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortNameAsc:
		return true
	}
	return false
}
