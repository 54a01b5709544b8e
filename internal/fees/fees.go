package fees

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Marketplace rates. Seller payout and platform fee partition the item price;
// the buyer fee is a display figure and is never added to the charge.
var (
	sellerShare   = decimal.New(85, -2)
	platformShare = decimal.New(15, -2)
	buyerShare    = decimal.New(10, -2)
)

// Item is the priced unit the calculator operates on.
type Item struct {
	CardID     uuid.UUID
	PriceCents int
}

// ItemPayout carries the per-item seller payout, rounded independently per item.
type ItemPayout struct {
	CardID      uuid.UUID
	PriceCents  int
	PayoutCents int
}

// Breakdown is the full fee decomposition for a checkout.
type Breakdown struct {
	SubtotalCents    int
	ShippingCents    int
	TotalCents       int
	PlatformFeeCents int
	BuyerFeeCents    int
	Payouts          []ItemPayout
}

// Compute derives the fee breakdown for the given items and shipping cost.
// Negative prices are normalized to zero. Payout rounding happens per item,
// so the sum of payouts can differ from round(subtotal*0.85) by a few cents;
// the per-item figures are what settlement pays out.
func Compute(items []Item, shippingCents int) Breakdown {
	if shippingCents < 0 {
		shippingCents = 0
	}

	subtotal := 0
	payouts := make([]ItemPayout, 0, len(items))
	for _, item := range items {
		price := item.PriceCents
		if price < 0 {
			price = 0
		}
		subtotal += price
		payouts = append(payouts, ItemPayout{
			CardID:      item.CardID,
			PriceCents:  price,
			PayoutCents: share(price, sellerShare),
		})
	}

	return Breakdown{
		SubtotalCents:    subtotal,
		ShippingCents:    shippingCents,
		TotalCents:       subtotal + shippingCents,
		PlatformFeeCents: share(subtotal, platformShare),
		BuyerFeeCents:    share(subtotal, buyerShare),
		Payouts:          payouts,
	}
}

func share(cents int, rate decimal.Decimal) int {
	return int(decimal.NewFromInt(int64(cents)).Mul(rate).Round(0).IntPart())
}
