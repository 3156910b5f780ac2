package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Catalog: статический справочник товаров для локального запуска и тестов.
type Catalog struct {
	mu         sync.RWMutex
	products   map[int64]domain.Product
	categories map[int64]domain.Category
}

// NewCatalog создаёт справочник из переданных товаров.
func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{
		products:   make(map[int64]domain.Product, len(products)),
		categories: make(map[int64]domain.Category),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// PutProduct добавляет или заменяет товар (например, чтобы сменить цену в тесте).
func (c *Catalog) PutProduct(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// PutCategory добавляет или заменяет категорию.
func (c *Catalog) PutCategory(cat domain.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories[cat.ID] = cat
}

func (c *Catalog) Product(_ context.Context, id int64) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (c *Catalog) Category(_ context.Context, id int64) (domain.Category, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cat, ok := c.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return cat, nil
}

// UpsertProduct реализует domain.CatalogSeeder.
func (c *Catalog) UpsertProduct(_ context.Context, p domain.Product) error {
	c.PutProduct(p)
	return nil
}

// UpsertCategory реализует domain.CatalogSeeder.
func (c *Catalog) UpsertCategory(_ context.Context, cat domain.Category) error {
	c.PutCategory(cat)
	return nil
}

var (
	_ domain.CatalogLookup = (*Catalog)(nil)
	_ domain.CatalogSeeder = (*Catalog)(nil)
)
