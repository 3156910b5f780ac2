package domain

import (
	"math"
	"time"
)

// OrderStatus описывает жизненный цикл заказа в витрине.
type OrderStatus string

const (
	// OrderStatusOpen: заказ принимает изменения позиций.
	OrderStatusOpen OrderStatus = "OPEN"
	// OrderStatusSubmitted: заказ отправлен и стал частью истории клиента.
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
)

// InitialOrderVersion: версия только что созданного пустого заказа.
// Первое добавление позиции переводит его в версию 1.
const InitialOrderVersion int64 = 0

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusOpen, OrderStatusSubmitted:
		return true
	default:
		return false
	}
}

// LineItem представляет одну позицию заказа.
type LineItem struct {
	// ProductID: ключ позиции, уникален в пределах заказа.
	ProductID int64
	// Quantity: количество единиц товара, всегда >= 1.
	Quantity int32
	// UnitPriceMinor: цена за единицу в минимальных денежных единицах, зафиксированная при добавлении.
	UnitPriceMinor int64
	// AddedAt фиксирует момент первого добавления товара в заказ.
	AddedAt time.Time
}

// Subtotal возвращает стоимость позиции.
func (li LineItem) Subtotal() int64 {
	return int64(li.Quantity) * li.UnitPriceMinor
}

// Order агрегирует состояние заказа и его позиции.
//
// Все изменения идут через методы агрегата: каждое успешное изменение
// увеличивает Version ровно на 1, а сумма всегда считается из позиций.
type Order struct {
	ID          string
	CustomerID  string
	Status      OrderStatus
	Version     int64
	Items       []LineItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SubmittedAt time.Time
}

// NewOpenOrder создаёт пустой открытый заказ с начальной версией.
func NewOpenOrder(id, customerID string, now time.Time) Order {
	return Order{
		ID:         id,
		CustomerID: customerID,
		Status:     OrderStatusOpen,
		Version:    InitialOrderVersion,
		Items:      []LineItem{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CurrentVersion возвращает текущую версию заказа для проверки конфликтов.
func (o *Order) CurrentVersion() int64 {
	return o.Version
}

// Total пересчитывает сумму заказа по позициям.
func (o *Order) Total() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return total
}

// LineItem возвращает позицию по товару.
func (o *Order) LineItem(productID int64) (LineItem, bool) {
	if idx := o.indexOf(productID); idx >= 0 {
		return o.Items[idx], true
	}
	return LineItem{}, false
}

// AddOrMergeLineItem добавляет товар в заказ. Если позиция уже есть,
// количество прибавляется к существующему, цена остаётся прежней.
func (o *Order) AddOrMergeLineItem(productID int64, quantity int32, unitPriceMinor int64, now time.Time) (LineItem, error) {
	return o.addLineItem(productID, quantity, unitPriceMinor, false, now)
}

// AddOrMergeLineItemRepriced работает как AddOrMergeLineItem, но при слиянии
// переписывает цену всей позиции текущей ценой каталога.
func (o *Order) AddOrMergeLineItemRepriced(productID int64, quantity int32, unitPriceMinor int64, now time.Time) (LineItem, error) {
	return o.addLineItem(productID, quantity, unitPriceMinor, true, now)
}

func (o *Order) addLineItem(productID int64, quantity int32, unitPriceMinor int64, reprice bool, now time.Time) (LineItem, error) {
	if o.Status != OrderStatusOpen {
		return LineItem{}, ErrInvalidState
	}
	if quantity <= 0 {
		return LineItem{}, ErrInvalidQuantity
	}
	if unitPriceMinor < 0 {
		return LineItem{}, ErrItemPriceInvalid
	}

	idx := o.indexOf(productID)
	if idx < 0 {
		item := LineItem{
			ProductID:      productID,
			Quantity:       quantity,
			UnitPriceMinor: unitPriceMinor,
			AddedAt:        now,
		}
		o.Items = append(o.Items, item)
		o.touch(now)
		return item, nil
	}

	merged := int64(o.Items[idx].Quantity) + int64(quantity)
	if merged <= 0 || merged > math.MaxInt32 {
		return LineItem{}, ErrInvalidQuantity
	}
	o.Items[idx].Quantity = int32(merged)
	if reprice {
		o.Items[idx].UnitPriceMinor = unitPriceMinor
	}
	o.touch(now)
	return o.Items[idx], nil
}

// RemoveLineItem удаляет позицию целиком. Пустой заказ остаётся открытым.
func (o *Order) RemoveLineItem(productID int64, now time.Time) error {
	if o.Status != OrderStatusOpen {
		return ErrInvalidState
	}
	idx := o.indexOf(productID)
	if idx < 0 {
		return ErrLineItemNotFound
	}

	o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
	o.touch(now)
	return nil
}

// Submit переводит заказ в SUBMITTED. После этого позиции неизменяемы.
func (o *Order) Submit(now time.Time) error {
	if o.Status != OrderStatusOpen {
		return ErrInvalidState
	}
	o.Status = OrderStatusSubmitted
	o.SubmittedAt = now
	o.touch(now)
	return nil
}

// Clone возвращает копию заказа, не разделяющую слайс позиций с оригиналом.
func (o Order) Clone() Order {
	items := make([]LineItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusUnknown)
	}

	seen := make(map[int64]struct{}, len(o.Items))
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if _, dup := seen[item.ProductID]; dup {
			errs = append(errs, ErrDuplicateLineItem)
		}
		seen[item.ProductID] = struct{}{}
	}

	return errs
}

func (o *Order) indexOf(productID int64) int {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (o *Order) touch(now time.Time) {
	o.Version++
	o.UpdatedAt = now
}
