package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Store: общее in-memory состояние клиентов и заказов.
//
// Репозитории клиентов и заказов работают поверх одного мьютекса, чтобы
// запись заказа и слота открытого заказа клиента была атомарной.
type Store struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
	orders    map[string]domain.Order
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		customers: make(map[string]domain.Customer),
		orders:    make(map[string]domain.Order),
	}
}
