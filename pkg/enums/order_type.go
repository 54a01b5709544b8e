package enums

import "fmt"

// OrderType distinguishes goods purchases from shipping-only orders.
type OrderType string

const (
	OrderTypePurchase OrderType = "purchase"
	OrderTypeShipping OrderType = "shipping"
)

var validOrderTypes = []OrderType{
	OrderTypePurchase,
	OrderTypeShipping,
}

// IsValid reports whether the value is a known OrderType.
func (t OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOrderType converts raw input into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}
