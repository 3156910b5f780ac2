package domain

import "errors"

var (
	// ErrCustomerNotFound: идентификатор вызывающего не соответствует ни одному клиенту.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrProductNotFound: товара с таким идентификатором нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrCategoryNotFound: категории с таким идентификатором нет в каталоге.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrInvalidQuantity: количество должно быть положительным целым.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrOrderModified сигнализирует, что версия заказа, известная клиенту, устарела.
	ErrOrderModified = errors.New("order modified")
	// ErrOrderNotFound возвращается, если у клиента нет открытого заказа (или заказ не найден в репозитории).
	ErrOrderNotFound = errors.New("order not found")
	// ErrLineItemNotFound: в заказе нет позиции для указанного товара.
	ErrLineItemNotFound = errors.New("line item not found")
	// ErrInvalidState: операция недопустима в текущем статусе заказа.
	ErrInvalidState = errors.New("order is not in a valid state for this operation")
	// ErrCustomerRequired: у заказа не указан владелец.
	ErrCustomerRequired = errors.New("customer_id is required")
	// ErrItemPriceInvalid: цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// ErrDuplicateLineItem: две позиции заказа ссылаются на один товар.
	ErrDuplicateLineItem = errors.New("duplicate line item for product")
	// ErrStatusUnknown: статус заказа вне допустимого набора.
	ErrStatusUnknown = errors.New("unknown order status")
	// ErrCustomerInfoInvalid: атрибуты не соответствуют типу клиента.
	ErrCustomerInfoInvalid = errors.New("customer info is invalid")
	// ErrAddressInvalid: адрес заполнен не полностью.
	ErrAddressInvalid = errors.New("address is invalid")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderModified)
}

// IsNotFound объединяет все ошибки "не найдено", которые транспорт отдаёт как 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrLineItemNotFound)
}
