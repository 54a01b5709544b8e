package fees

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSingleItem(t *testing.T) {
	cardID := uuid.New()
	breakdown := Compute([]Item{{CardID: cardID, PriceCents: 2000}}, 350)

	assert.Equal(t, 2000, breakdown.SubtotalCents)
	assert.Equal(t, 350, breakdown.ShippingCents)
	assert.Equal(t, 2350, breakdown.TotalCents)
	assert.Equal(t, 300, breakdown.PlatformFeeCents)
	assert.Equal(t, 200, breakdown.BuyerFeeCents)

	require.Len(t, breakdown.Payouts, 1)
	assert.Equal(t, cardID, breakdown.Payouts[0].CardID)
	assert.Equal(t, 1700, breakdown.Payouts[0].PayoutCents)
}

func TestComputeRoundsPerItem(t *testing.T) {
	// 999 * 0.85 = 849.15 -> 849; 1001 * 0.85 = 850.85 -> 851.
	breakdown := Compute([]Item{
		{CardID: uuid.New(), PriceCents: 999},
		{CardID: uuid.New(), PriceCents: 1001},
	}, 0)

	require.Len(t, breakdown.Payouts, 2)
	assert.Equal(t, 849, breakdown.Payouts[0].PayoutCents)
	assert.Equal(t, 851, breakdown.Payouts[1].PayoutCents)
	assert.Equal(t, 2000, breakdown.SubtotalCents)
	assert.Equal(t, 2000, breakdown.TotalCents)
}

func TestComputePayoutsNeverExceedSubtotal(t *testing.T) {
	prices := []int{1, 3, 7, 33, 99, 101, 12345, 250000}
	items := make([]Item, 0, len(prices))
	for _, p := range prices {
		items = append(items, Item{CardID: uuid.New(), PriceCents: p})
	}

	breakdown := Compute(items, 0)

	sum := 0
	for _, payout := range breakdown.Payouts {
		sum += payout.PayoutCents
	}
	assert.LessOrEqual(t, sum, breakdown.SubtotalCents)
}

func TestComputeNormalizesNegatives(t *testing.T) {
	breakdown := Compute([]Item{{CardID: uuid.New(), PriceCents: -500}}, -100)

	assert.Equal(t, 0, breakdown.SubtotalCents)
	assert.Equal(t, 0, breakdown.ShippingCents)
	assert.Equal(t, 0, breakdown.TotalCents)
	require.Len(t, breakdown.Payouts, 1)
	assert.Equal(t, 0, breakdown.Payouts[0].PayoutCents)
}

func TestComputeEmptyItems(t *testing.T) {
	breakdown := Compute(nil, 350)

	assert.Equal(t, 0, breakdown.SubtotalCents)
	assert.Equal(t, 350, breakdown.TotalCents)
	assert.Empty(t, breakdown.Payouts)
}
