package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardhaus/cardhaus-backend/pkg/config"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
)

func TestCostForMethod(t *testing.T) {
	calc := NewCalculator(config.ShippingConfig{FlatRateCents: 350})

	assert.Equal(t, 350, calc.CostFor(enums.ShippingMethodShipNow))
	assert.Equal(t, 0, calc.CostFor(enums.ShippingMethodStore))
	assert.Equal(t, 0, calc.CostFor(enums.ShippingMethodConsolidated))
}

func TestQuoteConsolidatedTiers(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		economy  int
		standard int
		express  int
	}{
		{name: "single card", count: 1, economy: 200, standard: 350, express: 900},
		{name: "small batch low edge", count: 2, economy: 400, standard: 500, express: 1200},
		{name: "small batch", count: 7, economy: 400, standard: 500, express: 1200},
		{name: "small batch high edge", count: 10, economy: 400, standard: 500, express: 1200},
		{name: "bulk edge", count: 11, economy: 1000, standard: 1200, express: 1500},
		{name: "bulk", count: 250, economy: 1000, standard: 1200, express: 1500},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			quote, err := QuoteConsolidated(tc.count)
			require.NoError(t, err)
			assert.Equal(t, tc.count, quote.CardCount)
			assert.Equal(t, tc.economy, quote.EconomyCents)
			assert.Equal(t, tc.standard, quote.StandardCents)
			assert.Equal(t, tc.express, quote.ExpressCents)
		})
	}
}

func TestQuoteConsolidatedRejectsZeroCards(t *testing.T) {
	_, err := QuoteConsolidated(0)
	require.Error(t, err)

	_, err = QuoteConsolidated(-3)
	require.Error(t, err)
}

func TestRateFor(t *testing.T) {
	rate, err := RateFor(7, enums.ShippingSpeedStandard)
	require.NoError(t, err)
	assert.Equal(t, 500, rate)

	rate, err = RateFor(11, enums.ShippingSpeedExpress)
	require.NoError(t, err)
	assert.Equal(t, 1500, rate)

	_, err = RateFor(5, enums.ShippingSpeed("overnight"))
	require.Error(t, err)
}
