package app

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Демо-данные для локального запуска. Клиент выбирается заголовком X-Customer-ID.
var (
	demoCategories = []domain.Category{
		{ID: 1, Name: "Hardware"},
		{ID: 2, Name: "Tools", ParentID: 1},
	}

	demoProducts = []domain.Product{
		{ID: 1, Name: "Widget", Description: "Standard widget", ImagePath: "/img/widget.png", PriceMinor: 1500},
		{ID: 2, Name: "Gadget", Description: "Pocket gadget", ImagePath: "/img/gadget.png", PriceMinor: 2490},
		{ID: 3, Name: "Screwdriver", Description: "Flat head", ImagePath: "/img/screwdriver.png", PriceMinor: 650},
	}

	demoCustomers = []domain.Customer{
		{
			ID:       "demo-home",
			Name:     "Jane Doe",
			Username: "jane",
			Address:  domain.Address{Line1: "1 Main St", City: "Springfield", Country: "US"},
			Info: domain.CustomerInfo{
				Kind:        domain.CustomerKindResidential,
				Residential: &domain.ResidentialInfo{HouseholdSize: 3},
			},
		},
		{
			ID:       "demo-business",
			Name:     "Acme Corp",
			Username: "acme",
			Address:  domain.Address{Line1: "200 Industrial Way", City: "Springfield", Country: "US"},
			Info: domain.CustomerInfo{
				Kind:     domain.CustomerKindBusiness,
				Business: &domain.BusinessInfo{Description: "Wholesale", BusinessPartner: true},
			},
		},
	}
)

// seedDemoData записывает демо-каталог и демо-клиентов. Повторный вызов безопасен.
func seedDemoData(ctx context.Context, customers domain.CustomerSeeder, catalog domain.CatalogSeeder) error {
	for _, category := range demoCategories {
		if err := catalog.UpsertCategory(ctx, category); err != nil {
			return fmt.Errorf("seed category %d: %w", category.ID, err)
		}
	}
	for _, product := range demoProducts {
		if err := catalog.UpsertProduct(ctx, product); err != nil {
			return fmt.Errorf("seed product %d: %w", product.ID, err)
		}
	}
	for _, customer := range demoCustomers {
		if err := customers.Upsert(ctx, customer); err != nil {
			return fmt.Errorf("seed customer %s: %w", customer.ID, err)
		}
	}
	return nil
}
