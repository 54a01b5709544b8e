package enums

import "fmt"

// ShippingMethod captures how a buyer wants goods handled at checkout time.
type ShippingMethod string

const (
	// ShippingMethodShipNow ships the purchase order itself at a flat rate.
	ShippingMethodShipNow ShippingMethod = "ship_now"
	// ShippingMethodStore keeps paid cards in platform custody; no shipping charge.
	ShippingMethodStore ShippingMethod = "store"
	// ShippingMethodConsolidated marks a shipping-only order that bundles stored cards.
	ShippingMethodConsolidated ShippingMethod = "consolidated"
)

var validShippingMethods = []ShippingMethod{
	ShippingMethodShipNow,
	ShippingMethodStore,
	ShippingMethodConsolidated,
}

// IsValid reports whether the value is a known ShippingMethod.
func (m ShippingMethod) IsValid() bool {
	for _, candidate := range validShippingMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseShippingMethod converts raw input into a ShippingMethod.
func ParseShippingMethod(value string) (ShippingMethod, error) {
	for _, candidate := range validShippingMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping method %q", value)
}

// ShippingSpeed is one of the three delivery-speed tiers a buyer can pick.
type ShippingSpeed string

const (
	ShippingSpeedEconomy  ShippingSpeed = "economy"
	ShippingSpeedStandard ShippingSpeed = "standard"
	ShippingSpeedExpress  ShippingSpeed = "express"
)

var validShippingSpeeds = []ShippingSpeed{
	ShippingSpeedEconomy,
	ShippingSpeedStandard,
	ShippingSpeedExpress,
}

// IsValid reports whether the value is a known ShippingSpeed.
func (s ShippingSpeed) IsValid() bool {
	for _, candidate := range validShippingSpeeds {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShippingSpeed converts raw input into a ShippingSpeed.
func ParseShippingSpeed(value string) (ShippingSpeed, error) {
	for _, candidate := range validShippingSpeeds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping speed %q", value)
}
