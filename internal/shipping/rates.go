package shipping

import (
	pkgerrors "github.com/cardhaus/cardhaus-backend/pkg/errors"

	"github.com/cardhaus/cardhaus-backend/pkg/config"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
)

// tier is one row of the consolidation rate table, in cents.
type tier struct {
	maxCards int // inclusive; 0 means unbounded
	economy  int
	standard int
	express  int
}

// Consolidation rates are keyed by how many cards leave the vault together.
var consolidationTiers = []tier{
	{maxCards: 1, economy: 200, standard: 350, express: 900},
	{maxCards: 10, economy: 400, standard: 500, express: 1200},
	{maxCards: 0, economy: 1000, standard: 1200, express: 1500},
}

// Quote lists the three speed options for a consolidated shipment.
type Quote struct {
	CardCount     int `json:"card_count"`
	EconomyCents  int `json:"economy_cents"`
	StandardCents int `json:"standard_cents"`
	ExpressCents  int `json:"express_cents"`
}

// Calculator prices shipping for checkout and consolidation flows.
type Calculator struct {
	flatRateCents int
}

// NewCalculator builds a calculator with the configured ship-now flat rate.
func NewCalculator(cfg config.ShippingConfig) *Calculator {
	return &Calculator{flatRateCents: cfg.FlatRateCents}
}

// CostFor returns the shipping cost charged at purchase checkout. Vault
// storage defers shipping, so it costs nothing up front.
func (c *Calculator) CostFor(method enums.ShippingMethod) int {
	switch method {
	case enums.ShippingMethodShipNow:
		return c.flatRateCents
	default:
		return 0
	}
}

// QuoteConsolidated returns all speed options for shipping count stored cards.
func QuoteConsolidated(count int) (Quote, error) {
	if count < 1 {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "card count must be at least 1")
	}
	t := tierFor(count)
	return Quote{
		CardCount:     count,
		EconomyCents:  t.economy,
		StandardCents: t.standard,
		ExpressCents:  t.express,
	}, nil
}

// RateFor returns the consolidated rate for one card count and speed.
func RateFor(count int, speed enums.ShippingSpeed) (int, error) {
	if count < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "card count must be at least 1")
	}
	t := tierFor(count)
	switch speed {
	case enums.ShippingSpeedEconomy:
		return t.economy, nil
	case enums.ShippingSpeedStandard:
		return t.standard, nil
	case enums.ShippingSpeedExpress:
		return t.express, nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipping speed")
	}
}

func tierFor(count int) tier {
	for _, t := range consolidationTiers {
		if t.maxCards == 0 || count <= t.maxCards {
			return t
		}
	}
	return consolidationTiers[len(consolidationTiers)-1]
}
