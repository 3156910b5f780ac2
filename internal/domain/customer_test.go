package domain_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestCustomerInfoValidate(t *testing.T) {
	cases := []struct {
		name    string
		info    domain.CustomerInfo
		wantErr bool
	}{
		{
			name: "residential ok",
			info: domain.CustomerInfo{
				Kind:        domain.CustomerKindResidential,
				Residential: &domain.ResidentialInfo{HouseholdSize: 3},
			},
		},
		{
			name: "business ok",
			info: domain.CustomerInfo{
				Kind:     domain.CustomerKindBusiness,
				Business: &domain.BusinessInfo{Description: "wholesale"},
			},
		},
		{
			name: "residential household too large",
			info: domain.CustomerInfo{
				Kind:        domain.CustomerKindResidential,
				Residential: &domain.ResidentialInfo{HouseholdSize: 11},
			},
			wantErr: true,
		},
		{
			name:    "residential without payload",
			info:    domain.CustomerInfo{Kind: domain.CustomerKindResidential},
			wantErr: true,
		},
		{
			name: "business with residential payload",
			info: domain.CustomerInfo{
				Kind:        domain.CustomerKindBusiness,
				Business:    &domain.BusinessInfo{},
				Residential: &domain.ResidentialInfo{HouseholdSize: 2},
			},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			info:    domain.CustomerInfo{Kind: "GOVERNMENT"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.info.Validate()
			if tc.wantErr && !errors.Is(err, domain.ErrCustomerInfoInvalid) {
				t.Fatalf("expected ErrCustomerInfoInvalid, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestAddressValidate(t *testing.T) {
	ok := domain.Address{Line1: "1 Main St", City: "Springfield", Country: "US"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missingCity := ok
	missingCity.City = "  "
	if err := missingCity.Validate(); !errors.Is(err, domain.ErrAddressInvalid) {
		t.Fatalf("expected ErrAddressInvalid, got %v", err)
	}
}

func TestCustomerFormMetadata(t *testing.T) {
	residential := domain.Customer{
		ID: "c-1",
		Info: domain.CustomerInfo{
			Kind:        domain.CustomerKindResidential,
			Residential: &domain.ResidentialInfo{HouseholdSize: 2},
		},
	}
	meta, err := residential.FormMetadata()
	if err != nil {
		t.Fatalf("form metadata failed: %v", err)
	}
	if meta.Type != "residential" || meta.Label != "Residential Customer" {
		t.Fatalf("unexpected residential meta: %+v", meta)
	}
	if !hasField(meta, "householdSize") || hasField(meta, "volumeDiscount") {
		t.Fatalf("unexpected residential fields: %+v", meta.Fields)
	}

	business := domain.Customer{
		ID: "c-2",
		Info: domain.CustomerInfo{
			Kind:     domain.CustomerKindBusiness,
			Business: &domain.BusinessInfo{},
		},
	}
	meta, err = business.FormMetadata()
	if err != nil {
		t.Fatalf("form metadata failed: %v", err)
	}
	if meta.Type != "business" || !hasField(meta, "businessPartner") {
		t.Fatalf("unexpected business meta: %+v", meta)
	}

	unknown := domain.Customer{ID: "c-3"}
	if _, err := unknown.FormMetadata(); !errors.Is(err, domain.ErrCustomerInfoInvalid) {
		t.Fatalf("expected ErrCustomerInfoInvalid, got %v", err)
	}
}

func hasField(meta domain.FormMeta, name string) bool {
	for _, f := range meta.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
