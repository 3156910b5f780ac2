package domain

import "context"

// Product: товар каталога. Для протокола заказа важны только наличие и цена.
type Product struct {
	ID          int64
	Name        string
	Description string
	ImagePath   string
	PriceMinor  int64
}

// Category: категория каталога.
type Category struct {
	ID       int64
	Name     string
	ParentID int64
}

// CatalogLookup: внешний read-only справочник товаров и категорий.
type CatalogLookup interface {
	// Product возвращает товар или ErrProductNotFound.
	Product(ctx context.Context, id int64) (Product, error)
	// Category возвращает категорию или ErrCategoryNotFound.
	Category(ctx context.Context, id int64) (Category, error)
}
