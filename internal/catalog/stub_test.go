package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var errSourceDown = errors.New("source down")

// countingSource: источник каталога, считающий обращения и умеющий падать.
type countingSource struct {
	mu         sync.Mutex
	products   map[int64]domain.Product
	categories map[int64]domain.Category
	calls      int
	fail       bool
}

func newCountingSource() *countingSource {
	return &countingSource{
		products: map[int64]domain.Product{
			7: {ID: 7, Name: "Lamp", PriceMinor: 1999},
		},
		categories: map[int64]domain.Category{
			1: {ID: 1, Name: "Home"},
		},
	}
}

func (s *countingSource) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *countingSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *countingSource) Product(_ context.Context, id int64) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return domain.Product{}, errSourceDown
	}
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (s *countingSource) Category(_ context.Context, id int64) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return domain.Category{}, errSourceDown
	}
	c, ok := s.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return c, nil
}
