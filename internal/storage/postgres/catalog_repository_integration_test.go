package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestCatalogRepository_PostgresLookup(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	repo := NewCatalogRepository(store)

	if err := repo.UpsertCategory(ctx, domain.Category{ID: 1, Name: "Home"}); err != nil {
		t.Fatalf("upsert root category: %v", err)
	}
	if err := repo.UpsertCategory(ctx, domain.Category{ID: 2, Name: "Lighting", ParentID: 1}); err != nil {
		t.Fatalf("upsert child category: %v", err)
	}
	if err := repo.UpsertProduct(ctx, domain.Product{ID: 7, Name: "Lamp", PriceMinor: 1999}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}

	product, err := repo.Product(ctx, 7)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.PriceMinor != 1999 {
		t.Fatalf("unexpected price: %d", product.PriceMinor)
	}

	category, err := repo.Category(ctx, 2)
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if category.ParentID != 1 {
		t.Fatalf("unexpected parent: %d", category.ParentID)
	}

	if _, err := repo.Product(ctx, 99); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := repo.Category(ctx, 99); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}
