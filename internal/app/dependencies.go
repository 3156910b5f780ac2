package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// customerStore: репозиторий клиентов, который умеет принимать демо-данные.
type customerStore interface {
	domain.CustomerRepository
	domain.CustomerSeeder
}

// catalogStore: источник каталога, который умеет принимать демо-данные.
type catalogStore interface {
	domain.CatalogLookup
	domain.CatalogSeeder
}

// runtimeDependencies: хранилища, выбранные по StorageDriver.
type runtimeDependencies struct {
	customers    customerStore
	orders       domain.OrderRepository
	catalog      catalogStore
	outboxRepo   domain.OutboxRepository
	timelineRepo domain.TimelineRepository

	// storageChecker равен nil для in-memory хранилища.
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
		return
	}
	logger.Info("storage closed")
}

// initRuntimeDependencies создаёт хранилища для выбранного драйвера.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		return initMemoryDependencies(), nil
	case StorageDriverPostgres:
		return initPostgresDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initMemoryDependencies() *runtimeDependencies {
	store := memory.NewStore()
	return &runtimeDependencies{
		customers:    memory.NewCustomerRepository(store),
		orders:       memory.NewOrderRepository(store),
		catalog:      memory.NewCatalog(),
		outboxRepo:   memory.NewOutboxRepository(),
		timelineRepo: memory.NewTimelineRepository(),
	}
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	dsn := strings.TrimSpace(cfg.PostgresDSN)
	if dsn == "" {
		return nil, errors.New("postgres storage driver requires a DSN")
	}

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply postgres migrations: %w", err)
		}
		logger.Info("postgres schema is up to date")
	}

	return &runtimeDependencies{
		customers:      postgres.NewCustomerRepository(store),
		orders:         postgres.NewOrderRepository(store),
		catalog:        postgres.NewCatalogRepository(store),
		outboxRepo:     postgres.NewOutboxRepository(store),
		timelineRepo:   postgres.NewTimelineRepository(store),
		storageChecker: healthcheck.NewSimpleChecker("postgres", store.Ping),
		closeFn:        store.Close,
	}, nil
}
