package domain

import (
	"strings"
	"time"
)

// CustomerKind: закрытый набор типов клиента. По нему выбирается, какие атрибуты заполнены.
type CustomerKind string

const (
	CustomerKindResidential CustomerKind = "RESIDENTIAL"
	CustomerKindBusiness    CustomerKind = "BUSINESS"
)

// Valid проверяет, что тип относится к поддерживаемым значениям.
func (k CustomerKind) Valid() bool {
	switch k {
	case CustomerKindResidential, CustomerKindBusiness:
		return true
	default:
		return false
	}
}

// Допустимый размер домохозяйства частного клиента.
const (
	MinHouseholdSize = 1
	MaxHouseholdSize = 10
)

// Address: почтовый адрес клиента.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Validate проверяет обязательные поля адреса.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Line1) == "" ||
		strings.TrimSpace(a.City) == "" ||
		strings.TrimSpace(a.Country) == "" {
		return ErrAddressInvalid
	}
	return nil
}

// ResidentialInfo: атрибуты частного клиента.
type ResidentialInfo struct {
	HouseholdSize    int16
	FrequentCustomer bool
}

// BusinessInfo: атрибуты корпоративного клиента.
type BusinessInfo struct {
	Description     string
	BusinessPartner bool
	VolumeDiscount  bool
}

// CustomerInfo: полезная нагрузка варианта. Заполнено ровно одно поле, соответствующее Kind.
type CustomerInfo struct {
	Kind        CustomerKind
	Residential *ResidentialInfo
	Business    *BusinessInfo
}

// Validate проверяет согласованность тега и полезной нагрузки.
func (i CustomerInfo) Validate() error {
	switch i.Kind {
	case CustomerKindResidential:
		if i.Residential == nil || i.Business != nil {
			return ErrCustomerInfoInvalid
		}
		if i.Residential.HouseholdSize < MinHouseholdSize || i.Residential.HouseholdSize > MaxHouseholdSize {
			return ErrCustomerInfoInvalid
		}
	case CustomerKindBusiness:
		if i.Business == nil || i.Residential != nil {
			return ErrCustomerInfoInvalid
		}
	default:
		return ErrCustomerInfoInvalid
	}
	return nil
}

// Customer описывает владельца заказов.
type Customer struct {
	ID       string
	Name     string
	Username string
	Address  Address
	Info     CustomerInfo
	// OpenOrderID: ссылка на единственный открытый заказ; пустая строка, если его нет.
	OpenOrderID string
	// HistoryUpdatedAt меняется при каждом пополнении истории заказов.
	HistoryUpdatedAt time.Time
}

// Kind возвращает тег варианта.
func (c *Customer) Kind() CustomerKind {
	return c.Info.Kind
}

// HasOpenOrder сообщает, занят ли слот открытого заказа.
func (c *Customer) HasOpenOrder() bool {
	return c.OpenOrderID != ""
}

// FormField описывает одно поле формы профиля клиента.
type FormField struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	ReadOnly    bool   `json:"readonly,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Constraints string `json:"constraints,omitempty"`
}

// FormMeta: описание формы профиля для конкретного типа клиента.
type FormMeta struct {
	Type   string      `json:"type"`
	Label  string      `json:"label"`
	Fields []FormField `json:"formData"`
}

// FormMetadata строит описание формы по типу клиента.
func (c *Customer) FormMetadata() (FormMeta, error) {
	fields := []FormField{{Name: "name", Label: "Name", Type: "string", ReadOnly: true}}

	switch c.Info.Kind {
	case CustomerKindBusiness:
		fields = append(fields,
			FormField{Name: "description", Label: "Description", Type: "text"},
			FormField{Name: "businessPartner", Label: "Business Partner", Type: "string", ReadOnly: true},
			FormField{Name: "volumeDiscount", Label: "Volume Discount", Type: "string", ReadOnly: true},
		)
		return FormMeta{Type: "business", Label: "Business Customer", Fields: fields}, nil
	case CustomerKindResidential:
		fields = append(fields,
			FormField{Name: "frequentCustomer", Label: "Frequent Customer", Type: "string", ReadOnly: true},
			FormField{
				Name:        "householdSize",
				Label:       "Household Size",
				Type:        "number",
				Required:    true,
				Constraints: "{min:1,max:10,places:0}",
			},
		)
		return FormMeta{Type: "residential", Label: "Residential Customer", Fields: fields}, nil
	default:
		return FormMeta{}, ErrCustomerInfoInvalid
	}
}
