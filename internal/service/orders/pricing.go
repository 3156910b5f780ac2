package orders

import (
	"fmt"
	"strings"
)

// PricePolicy определяет, какую цену получает позиция при повторном добавлении товара.
type PricePolicy string

const (
	// PricePolicyFixed сохраняет цену, зафиксированную при первом добавлении.
	PricePolicyFixed PricePolicy = "fixed"
	// PricePolicyRefresh перечитывает цену каталога и применяет её ко всей позиции.
	PricePolicyRefresh PricePolicy = "refresh"
)

// ParsePricePolicy разбирает значение из конфигурации. Пустая строка означает fixed.
func ParsePricePolicy(value string) (PricePolicy, error) {
	switch PricePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PricePolicyFixed:
		return PricePolicyFixed, nil
	case PricePolicyRefresh:
		return PricePolicyRefresh, nil
	default:
		return "", fmt.Errorf("unknown price policy %q", value)
	}
}
