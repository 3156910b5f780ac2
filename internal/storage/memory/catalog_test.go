package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestCatalog_Lookup(t *testing.T) {
	ctx := context.Background()
	catalog := memory.NewCatalog(domain.Product{ID: 7, Name: "Lamp", PriceMinor: 1999})
	catalog.PutCategory(domain.Category{ID: 1, Name: "Home"})

	product, err := catalog.Product(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1999), product.PriceMinor)

	_, err = catalog.Product(ctx, 8)
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	catalog.PutProduct(domain.Product{ID: 7, Name: "Lamp", PriceMinor: 2499})
	product, err = catalog.Product(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(2499), product.PriceMinor)

	category, err := catalog.Category(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Home", category.Name)

	_, err = catalog.Category(ctx, 2)
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)
}
