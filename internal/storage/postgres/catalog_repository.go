package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт read-модель каталога поверх таблиц products/categories.
func NewCatalogRepository(store *Store) *catalogRepository {
	return &catalogRepository{db: store.DB()}
}

func (r *catalogRepository) Product(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, image_path, price_minor
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.ImagePath, &p.PriceMinor)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func (r *catalogRepository) Category(ctx context.Context, id int64) (domain.Category, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var (
		c        domain.Category
		parentID sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, parent_id
		FROM categories
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("select category: %w", err)
	}
	c.ParentID = parentID.Int64
	return c, nil
}

// UpsertProduct используется сидером и тестами.
func (r *catalogRepository) UpsertProduct(ctx context.Context, p domain.Product) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, image_path, price_minor)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			image_path = EXCLUDED.image_path,
			price_minor = EXCLUDED.price_minor
	`, p.ID, p.Name, p.Description, p.ImagePath, p.PriceMinor); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// UpsertCategory используется сидером и тестами. ParentID=0 означает корневую категорию.
func (r *catalogRepository) UpsertCategory(ctx context.Context, c domain.Category) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var parentID sql.NullInt64
	if c.ParentID != 0 {
		parentID = sql.NullInt64{Int64: c.ParentID, Valid: true}
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, parent_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			parent_id = EXCLUDED.parent_id
	`, c.ID, c.Name, parentID); err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

var _ domain.CatalogLookup = (*catalogRepository)(nil)
