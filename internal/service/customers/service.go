// Package customers обслуживает профиль клиента: адрес, атрибуты варианта и описание формы.
package customers

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service работает с профилем клиента поверх репозиториев.
type Service struct {
	customers domain.CustomerRepository
	orders    domain.OrderRepository
	logger    *log.Entry
}

// NewService конструирует сервис профиля.
func NewService(customers domain.CustomerRepository, orders domain.OrderRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "customer-service")
	}
	return &Service{customers: customers, orders: orders, logger: logger}
}

// Load возвращает клиента и снимок его открытого заказа, если он есть.
func (s *Service) Load(ctx context.Context, customerID string) (domain.Customer, *domain.Order, error) {
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return domain.Customer{}, nil, err
	}
	if !customer.HasOpenOrder() {
		return customer, nil, nil
	}

	order, err := s.orders.Get(ctx, customer.OpenOrderID)
	if err != nil {
		return domain.Customer{}, nil, fmt.Errorf("load open order %s: %w", customer.OpenOrderID, err)
	}
	if order.Status != domain.OrderStatusOpen {
		customer.OpenOrderID = ""
		return customer, nil, nil
	}
	return customer, &order, nil
}

// UpdateAddress проверяет и сохраняет новый адрес.
func (s *Service) UpdateAddress(ctx context.Context, customerID string, address domain.Address) error {
	if err := address.Validate(); err != nil {
		return err
	}
	if err := s.customers.UpdateAddress(ctx, customerID, address); err != nil {
		return err
	}
	s.logger.WithField("customer_id", customerID).Info("customer address updated")
	return nil
}

// UpdateInfo сохраняет атрибуты варианта. Тип клиента должен совпадать с текущим:
// поля другого варианта отклоняются с ErrCustomerInfoInvalid. Флаги, которые форма
// показывает только для чтения, берутся из текущего профиля.
func (s *Service) UpdateInfo(ctx context.Context, customerID string, info domain.CustomerInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return err
	}
	if customer.Kind() != info.Kind {
		return domain.ErrCustomerInfoInvalid
	}
	info = keepReadOnlyFlags(customer.Info, info)

	if err := s.customers.UpdateInfo(ctx, customerID, info); err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{
		"customer_id": customerID,
		"kind":        info.Kind,
	}).Info("customer info updated")
	return nil
}

// FormMetadata возвращает описание формы профиля для типа клиента.
func (s *Service) FormMetadata(ctx context.Context, customerID string) (domain.FormMeta, error) {
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return domain.FormMeta{}, err
	}
	return customer.FormMetadata()
}

func keepReadOnlyFlags(current, next domain.CustomerInfo) domain.CustomerInfo {
	switch next.Kind {
	case domain.CustomerKindResidential:
		residential := *next.Residential
		if current.Residential != nil {
			residential.FrequentCustomer = current.Residential.FrequentCustomer
		}
		next.Residential = &residential
	case domain.CustomerKindBusiness:
		business := *next.Business
		if current.Business != nil {
			business.BusinessPartner = current.Business.BusinessPartner
			business.VolumeDiscount = current.Business.VolumeDiscount
		}
		next.Business = &business
	}
	return next
}
