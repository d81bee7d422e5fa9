// Command seed writes the furniture catalog into the categories and products
// tables. IDs are derived from slugs, so running it again updates rows in
// place.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/furnishop/internal/config"
	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository/postgres"
	"github.com/utafrali/furnishop/pkg/database"
	"github.com/utafrali/furnishop/pkg/logger"
	"github.com/utafrali/furnishop/pkg/money"
)

// catalogNamespace scopes the slug-derived IDs.
var catalogNamespace = uuid.MustParse("3d0c5a52-8f57-4e55-9b4b-2f6c0e6b8a10")

type categoryDef struct {
	slug  string
	name  string
	image string
}

var categories = []categoryDef{
	{slug: "sofas", name: "Диваны", image: "/images/categories/sofas.jpg"},
	{slug: "chairs", name: "Кресла и стулья", image: "/images/categories/chairs.jpg"},
	{slug: "tables", name: "Столы"},
	{slug: "bedroom", name: "Спальня", image: "/images/categories/bedroom.jpg"},
	{slug: "storage", name: "Хранение"},
}

type productDef struct {
	slug        string
	category    string
	name        string
	description string
	price       string // rubles
	images      []string
	active      bool
}

var catalog = []productDef{
	{slug: "sofa-oslo", category: "sofas", name: "Диван «Осло»", description: "Трёхместный диван, рогожка, независимый пружинный блок", price: "45000", images: []string{"/images/sofa-oslo-1.jpg", "/images/sofa-oslo-2.jpg"}, active: true},
	{slug: "sofa-bergen-corner", category: "sofas", name: "Угловой диван «Берген»", description: "Угловой диван с оттоманкой и ящиком для белья", price: "78990", images: []string{"/images/bergen-1.jpg"}, active: true},
	{slug: "armchair-nord", category: "chairs", name: "Кресло «Норд»", description: "Кресло на деревянных ножках, велюр", price: "18500", images: []string{"/images/nord.jpg"}, active: true},
	{slug: "chair-vienna", category: "chairs", name: "Стул «Вена»", description: "Гнутый бук, мягкое сиденье", price: "6490.50", images: []string{"/images/vienna.jpg"}, active: true},
	{slug: "table-loft", category: "tables", name: "Стол обеденный «Лофт»", description: "Массив дуба, металлическое подстолье, 160×90 см", price: "32000", images: []string{"/images/loft-table.jpg"}, active: true},
	{slug: "bed-alba-160", category: "bedroom", name: "Кровать «Альба» 160×200", description: "Мягкое изголовье, подъёмный механизм", price: "54990", images: []string{"/images/alba-1.jpg", "/images/alba-2.jpg"}, active: true},
	{slug: "wardrobe-kupe-2", category: "storage", name: "Шкаф-купе двухдверный", description: "Зеркальные двери, 180 см", price: "41200", images: []string{"/images/kupe.jpg"}, active: true},
	{slug: "dresser-provence", category: "storage", name: "Комод «Прованс»", description: "Четыре ящика, патина", price: "23750", images: []string{"/images/provence.jpg"}, active: true},
	{slug: "shelf-modul", category: "storage", name: "Стеллаж «Модуль»", description: "Снят с производства", price: "9900", images: []string{"/images/modul.jpg"}, active: false},
}

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("furnishop-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, postgres.Migrations(), log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	entries, err := buildCatalog(catalog)
	if err != nil {
		return err
	}

	repo := postgres.NewProductRepository(pool)
	for _, c := range buildCategories(categories) {
		if err := repo.UpsertCategory(ctx, c); err != nil {
			return err
		}
		log.Info("category seeded", slog.String("id", c.ID), slog.String("slug", c.Slug))
	}
	for _, e := range entries {
		if err := repo.Upsert(ctx, e); err != nil {
			return err
		}
		log.Info("product seeded",
			slog.String("id", e.Product.ID),
			slog.String("name", e.Product.Name),
			slog.String("price", money.Format(e.Product.Price)),
			slog.Bool("active", e.Active),
		)
	}

	log.Info("catalog seeded",
		slog.Int("categories", len(categories)),
		slog.Int("products", len(entries)),
	)
	return nil
}

func buildCategories(defs []categoryDef) []domain.Category {
	out := make([]domain.Category, 0, len(defs))
	for _, d := range defs {
		c := domain.Category{ID: categoryID(d.slug), Name: d.name, Slug: d.slug}
		if d.image != "" {
			image := d.image
			c.ImageURL = &image
		}
		out = append(out, c)
	}
	return out
}

// buildCatalog turns the definitions into rows, converting prices to kopecks.
func buildCatalog(defs []productDef) ([]postgres.CatalogEntry, error) {
	entries := make([]postgres.CatalogEntry, 0, len(defs))
	for _, d := range defs {
		price, err := money.FromMajor(d.price)
		if err != nil {
			return nil, fmt.Errorf("price of %s: %w", d.slug, err)
		}
		var category *string
		if d.category != "" {
			id := categoryID(d.category)
			category = &id
		}
		entries = append(entries, postgres.CatalogEntry{
			Product: domain.Product{
				ID:     productID(d.slug),
				Name:   d.name,
				Price:  price,
				Images: d.images,
			},
			Description: d.description,
			CategoryID:  category,
			Active:      d.active,
		})
	}
	return entries, nil
}

func productID(slug string) string {
	return uuid.NewSHA1(catalogNamespace, []byte(slug)).String()
}

func categoryID(slug string) string {
	return uuid.NewSHA1(catalogNamespace, []byte("category:"+slug)).String()
}
