package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestCustomerRepository_PostgresRoundTrip(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	repo := NewCustomerRepository(store)

	business := domain.Customer{
		ID:       "biz-1",
		Name:     "ACME Corp",
		Username: "acme",
		Info: domain.CustomerInfo{
			Kind:     domain.CustomerKindBusiness,
			Business: &domain.BusinessInfo{Description: "Anvils", BusinessPartner: true},
		},
	}
	if err := repo.Upsert(ctx, business); err != nil {
		t.Fatalf("upsert business: %v", err)
	}

	got, err := repo.Get(ctx, "biz-1")
	if err != nil {
		t.Fatalf("get business: %v", err)
	}
	if got.Kind() != domain.CustomerKindBusiness || got.Info.Business == nil || got.Info.Residential != nil {
		t.Fatalf("unexpected variant payload: %+v", got.Info)
	}
	if got.Info.Business.Description != "Anvils" || !got.Info.Business.BusinessPartner {
		t.Fatalf("unexpected business info: %+v", got.Info.Business)
	}

	address := domain.Address{Line1: "500 Industrial Way", City: "Tucson", Region: "AZ", Country: "US"}
	if err := repo.UpdateAddress(ctx, "biz-1", address); err != nil {
		t.Fatalf("update address: %v", err)
	}
	got, err = repo.Get(ctx, "biz-1")
	if err != nil {
		t.Fatalf("get after address update: %v", err)
	}
	if got.Address != address {
		t.Fatalf("unexpected address: %+v", got.Address)
	}

	update := domain.CustomerInfo{
		Kind:     domain.CustomerKindBusiness,
		Business: &domain.BusinessInfo{Description: "Rockets", VolumeDiscount: true},
	}
	if err := repo.UpdateInfo(ctx, "biz-1", update); err != nil {
		t.Fatalf("update info: %v", err)
	}

	residential := domain.CustomerInfo{
		Kind:        domain.CustomerKindResidential,
		Residential: &domain.ResidentialInfo{HouseholdSize: 2},
	}
	if err := repo.UpdateInfo(ctx, "biz-1", residential); !errors.Is(err, domain.ErrCustomerInfoInvalid) {
		t.Fatalf("expected ErrCustomerInfoInvalid on kind change, got %v", err)
	}
}

func TestCustomerRepository_PostgresMissing(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	repo := NewCustomerRepository(store)

	if _, err := repo.Get(ctx, "ghost"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if err := repo.UpdateAddress(ctx, "ghost", domain.Address{Line1: "x", City: "y", Country: "z"}); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound on address update, got %v", err)
	}
	info := residentialCustomer("ghost").Info
	if err := repo.UpdateInfo(ctx, "ghost", info); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound on info update, got %v", err)
	}
}
