package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// addLineItemRequest: тело POST /customer/open-order/line-items.
// Значения проверяет сервис, здесь только наличие полей.
type addLineItemRequest struct {
	ProductID *int64 `json:"productId" validate:"required"`
	Quantity  *int32 `json:"quantity" validate:"required"`
}

type addressPayload struct {
	Line1      string `json:"line1" validate:"required,max=128"`
	Line2      string `json:"line2" validate:"max=128"`
	City       string `json:"city" validate:"required,max=64"`
	Region     string `json:"region" validate:"max=64"`
	PostalCode string `json:"postalCode" validate:"max=16"`
	Country    string `json:"country" validate:"required,max=64"`
}

func (a addressPayload) toDomain() domain.Address {
	return domain.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func addressFromDomain(a domain.Address) addressPayload {
	return addressPayload{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

// updateInfoRequest: редактируемые поля формы профиля. Поля другого типа клиента
// не отбрасываются молча: сервис отклонит такой запрос.
type updateInfoRequest struct {
	Type          string  `json:"type" validate:"required,oneof=residential business"`
	HouseholdSize *int16  `json:"householdSize" validate:"required_if=Type residential"`
	Description   *string `json:"description" validate:"omitempty,max=512"`
}

func (r updateInfoRequest) toDomain() domain.CustomerInfo {
	info := domain.CustomerInfo{}
	switch r.Type {
	case "residential":
		info.Kind = domain.CustomerKindResidential
	case "business":
		info.Kind = domain.CustomerKindBusiness
	}

	if r.HouseholdSize != nil {
		info.Residential = &domain.ResidentialInfo{HouseholdSize: *r.HouseholdSize}
	}
	if r.Description != nil {
		info.Business = &domain.BusinessInfo{Description: *r.Description}
	}
	if info.Kind == domain.CustomerKindBusiness && info.Business == nil {
		info.Business = &domain.BusinessInfo{}
	}
	return info
}

type lineItemResponse struct {
	ProductID      int64     `json:"productId"`
	Quantity       int32     `json:"quantity"`
	UnitPriceMinor int64     `json:"unitPriceMinor"`
	SubtotalMinor  int64     `json:"subtotalMinor"`
	AddedAt        time.Time `json:"addedAt"`
}

type orderResponse struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	Version     int64              `json:"version"`
	TotalMinor  int64              `json:"totalMinor"`
	Items       []lineItemResponse `json:"lineItems"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	SubmittedAt *time.Time         `json:"submittedAt,omitempty"`
}

func orderFromDomain(order domain.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, lineItemResponse{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceMinor: item.UnitPriceMinor,
			SubtotalMinor:  item.Subtotal(),
			AddedAt:        item.AddedAt,
		})
	}

	resp := orderResponse{
		ID:         order.ID,
		Status:     string(order.Status),
		Version:    order.Version,
		TotalMinor: order.Total(),
		Items:      items,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
	if !order.SubmittedAt.IsZero() {
		submitted := order.SubmittedAt
		resp.SubmittedAt = &submitted
	}
	return resp
}

type residentialResponse struct {
	HouseholdSize    int16 `json:"householdSize"`
	FrequentCustomer bool  `json:"frequentCustomer"`
}

type businessResponse struct {
	Description     string `json:"description"`
	BusinessPartner bool   `json:"businessPartner"`
	VolumeDiscount  bool   `json:"volumeDiscount"`
}

type customerResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Username    string               `json:"username,omitempty"`
	Type        string               `json:"type"`
	Address     addressPayload       `json:"address"`
	Residential *residentialResponse `json:"residential,omitempty"`
	Business    *businessResponse    `json:"business,omitempty"`
	OpenOrder   *orderResponse       `json:"openOrder,omitempty"`
}

func customerFromDomain(customer domain.Customer, open *domain.Order) customerResponse {
	resp := customerResponse{
		ID:       customer.ID,
		Name:     customer.Name,
		Username: customer.Username,
		Address:  addressFromDomain(customer.Address),
	}

	switch customer.Kind() {
	case domain.CustomerKindResidential:
		resp.Type = "residential"
		if info := customer.Info.Residential; info != nil {
			resp.Residential = &residentialResponse{
				HouseholdSize:    info.HouseholdSize,
				FrequentCustomer: info.FrequentCustomer,
			}
		}
	case domain.CustomerKindBusiness:
		resp.Type = "business"
		if info := customer.Info.Business; info != nil {
			resp.Business = &businessResponse{
				Description:     info.Description,
				BusinessPartner: info.BusinessPartner,
				VolumeDiscount:  info.VolumeDiscount,
			}
		}
	}

	if open != nil {
		order := orderFromDomain(*open)
		resp.OpenOrder = &order
	}
	return resp
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Version  int64     `json:"version"`
	Occurred time.Time `json:"occurred"`
}
