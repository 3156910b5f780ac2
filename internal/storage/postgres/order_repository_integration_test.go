package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOrderRepository_PostgresCreateSaveSubmit(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	seedCustomerForIntegrationTest(t, store, residentialCustomer("customer-1"))

	repo := NewOrderRepository(store)
	customers := NewCustomerRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order := domain.NewOpenOrder("order-1", "customer-1", now)
	if _, err := order.AddOrMergeLineItem(7, 2, 150, now); err != nil {
		t.Fatalf("add line item: %v", err)
	}
	if err := repo.Create(ctx, domain.NewOpenOrder(order.ID, order.CustomerID, now)); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := repo.Save(ctx, order, 0); err != nil {
		t.Fatalf("save order: %v", err)
	}

	got, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Version != 1 || len(got.Items) != 1 || got.Total() != 300 {
		t.Fatalf("unexpected stored order: %+v", got)
	}

	customer, err := customers.Get(ctx, "customer-1")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.OpenOrderID != order.ID {
		t.Fatalf("expected open order slot %q, got %q", order.ID, customer.OpenOrderID)
	}

	submitAt := now.Add(time.Minute)
	if err := got.Submit(submitAt); err != nil {
		t.Fatalf("submit aggregate: %v", err)
	}
	if err := repo.Submit(ctx, got, 1); err != nil {
		t.Fatalf("submit order: %v", err)
	}

	customer, err = customers.Get(ctx, "customer-1")
	if err != nil {
		t.Fatalf("get customer after submit: %v", err)
	}
	if customer.HasOpenOrder() {
		t.Fatalf("slot must be released after submit, got %q", customer.OpenOrderID)
	}
	if !customer.HistoryUpdatedAt.Equal(submitAt) {
		t.Fatalf("unexpected history timestamp: %v", customer.HistoryUpdatedAt)
	}

	history, err := repo.ListSubmitted(ctx, "customer-1", 0)
	if err != nil {
		t.Fatalf("list submitted: %v", err)
	}
	if len(history) != 1 || history[0].Status != domain.OrderStatusSubmitted || len(history[0].Items) != 1 {
		t.Fatalf("unexpected history: %+v", history)
	}

	// После отправки можно открыть новый заказ.
	if err := repo.Create(ctx, domain.NewOpenOrder("order-2", "customer-1", submitAt)); err != nil {
		t.Fatalf("create second order: %v", err)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	seedCustomerForIntegrationTest(t, store, residentialCustomer("customer-2"))
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := domain.NewOpenOrder("order-errors", "customer-2", now)

	if _, err := repo.Get(ctx, "missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if err := repo.Save(ctx, base, 0); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on save missing, got %v", err)
	}
	if err := repo.Create(ctx, domain.NewOpenOrder("ghost-order", "ghost", now)); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}

	if err := repo.Create(ctx, base); err != nil {
		t.Fatalf("create base order: %v", err)
	}
	if err := repo.Create(ctx, domain.NewOpenOrder("order-errors-2", "customer-2", now)); !errors.Is(err, domain.ErrOrderModified) {
		t.Fatalf("expected ErrOrderModified on second open order, got %v", err)
	}

	stale := base.Clone()
	if _, err := stale.AddOrMergeLineItem(1, 1, 10, now); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.Save(ctx, stale, 42); !errors.Is(err, domain.ErrOrderModified) {
		t.Fatalf("expected ErrOrderModified on stale save, got %v", err)
	}
}

func TestOrderRepository_PostgresConcurrentSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	seedCustomerForIntegrationTest(t, store, residentialCustomer("customer-3"))
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := domain.NewOpenOrder("order-race", "customer-3", now)
	if err := repo.Create(ctx, base); err != nil {
		t.Fatalf("create: %v", err)
	}

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(productID int64) {
			defer wg.Done()
			candidate := base.Clone()
			if _, err := candidate.AddOrMergeLineItem(productID, 1, 100, now); err != nil {
				t.Errorf("add: %v", err)
				return
			}
			err := repo.Save(ctx, candidate, 0)
			switch {
			case err == nil:
				successes.Add(1)
			case !errors.Is(err, domain.ErrOrderModified):
				t.Errorf("unexpected save error: %v", err)
			}
		}(int64(i))
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Fatalf("expected exactly one successful save, got %d", successes.Load())
	}
	stored, err := repo.Get(ctx, base.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Version != 1 || len(stored.Items) != 1 {
		t.Fatalf("unexpected stored order: %+v", stored)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}
