package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) *customerRepository {
	return &customerRepository{db: store.DB()}
}

func (r *customerRepository) Get(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var (
		customer            domain.Customer
		kind                string
		householdSize       sql.NullInt16
		frequentCustomer    sql.NullBool
		businessDescription sql.NullString
		businessPartner     sql.NullBool
		volumeDiscount      sql.NullBool
		openOrderID         sql.NullString
		historyUpdatedAt    sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, username, kind,
		       household_size, frequent_customer,
		       business_description, business_partner, volume_discount,
		       address_line1, address_line2, address_city, address_region, address_postal_code, address_country,
		       open_order_id, history_updated_at
		FROM customers
		WHERE id = $1
	`, id).Scan(
		&customer.ID, &customer.Name, &customer.Username, &kind,
		&householdSize, &frequentCustomer,
		&businessDescription, &businessPartner, &volumeDiscount,
		&customer.Address.Line1, &customer.Address.Line2, &customer.Address.City,
		&customer.Address.Region, &customer.Address.PostalCode, &customer.Address.Country,
		&openOrderID, &historyUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	if err != nil {
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}

	customer.Info.Kind = domain.CustomerKind(kind)
	switch customer.Info.Kind {
	case domain.CustomerKindResidential:
		customer.Info.Residential = &domain.ResidentialInfo{
			HouseholdSize:    householdSize.Int16,
			FrequentCustomer: frequentCustomer.Bool,
		}
	case domain.CustomerKindBusiness:
		customer.Info.Business = &domain.BusinessInfo{
			Description:     businessDescription.String,
			BusinessPartner: businessPartner.Bool,
			VolumeDiscount:  volumeDiscount.Bool,
		}
	}
	customer.OpenOrderID = openOrderID.String
	if historyUpdatedAt.Valid {
		customer.HistoryUpdatedAt = historyUpdatedAt.Time
	}

	return customer, nil
}

func (r *customerRepository) UpdateAddress(ctx context.Context, id string, address domain.Address) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET address_line1 = $2,
		    address_line2 = $3,
		    address_city = $4,
		    address_region = $5,
		    address_postal_code = $6,
		    address_country = $7
		WHERE id = $1
	`, id, address.Line1, address.Line2, address.City, address.Region, address.PostalCode, address.Country)
	if err != nil {
		return fmt.Errorf("update customer address: %w", err)
	}
	return requireAffected(res, domain.ErrCustomerNotFound)
}

// UpdateInfo переписывает атрибуты только при совпадении типа клиента.
func (r *customerRepository) UpdateInfo(ctx context.Context, id string, info domain.CustomerInfo) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	cols := infoColumns(info)
	res, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET household_size = $3,
		    frequent_customer = $4,
		    business_description = $5,
		    business_partner = $6,
		    volume_discount = $7
		WHERE id = $1
		  AND kind = $2
	`, id, string(info.Kind),
		cols.householdSize, cols.frequentCustomer,
		cols.businessDescription, cols.businessPartner, cols.volumeDiscount,
	)
	if err != nil {
		return fmt.Errorf("update customer info: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check customer exists: %w", err)
	}
	if !exists {
		return domain.ErrCustomerNotFound
	}
	return domain.ErrCustomerInfoInvalid
}

// Upsert вставляет или обновляет профиль, не трогая слот открытого заказа.
func (r *customerRepository) Upsert(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	cols := infoColumns(customer.Info)
	a := customer.Address
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (
			id, name, username, kind,
			household_size, frequent_customer,
			business_description, business_partner, volume_discount,
			address_line1, address_line2, address_city, address_region, address_postal_code, address_country
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			username = EXCLUDED.username,
			kind = EXCLUDED.kind,
			household_size = EXCLUDED.household_size,
			frequent_customer = EXCLUDED.frequent_customer,
			business_description = EXCLUDED.business_description,
			business_partner = EXCLUDED.business_partner,
			volume_discount = EXCLUDED.volume_discount,
			address_line1 = EXCLUDED.address_line1,
			address_line2 = EXCLUDED.address_line2,
			address_city = EXCLUDED.address_city,
			address_region = EXCLUDED.address_region,
			address_postal_code = EXCLUDED.address_postal_code,
			address_country = EXCLUDED.address_country
	`,
		customer.ID, customer.Name, customer.Username, string(customer.Info.Kind),
		cols.householdSize, cols.frequentCustomer,
		cols.businessDescription, cols.businessPartner, cols.volumeDiscount,
		a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country,
	); err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

type customerInfoColumns struct {
	householdSize       sql.NullInt16
	frequentCustomer    sql.NullBool
	businessDescription sql.NullString
	businessPartner     sql.NullBool
	volumeDiscount      sql.NullBool
}

func infoColumns(info domain.CustomerInfo) customerInfoColumns {
	var cols customerInfoColumns
	if info.Residential != nil {
		cols.householdSize = sql.NullInt16{Int16: info.Residential.HouseholdSize, Valid: true}
		cols.frequentCustomer = sql.NullBool{Bool: info.Residential.FrequentCustomer, Valid: true}
	}
	if info.Business != nil {
		cols.businessDescription = sql.NullString{String: info.Business.Description, Valid: true}
		cols.businessPartner = sql.NullBool{Bool: info.Business.BusinessPartner, Valid: true}
		cols.volumeDiscount = sql.NullBool{Bool: info.Business.VolumeDiscount, Valid: true}
	}
	return cols
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

var (
	_ domain.CustomerRepository = (*customerRepository)(nil)
	_ domain.CustomerSeeder     = (*customerRepository)(nil)
)
