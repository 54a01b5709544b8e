package controllers

import (
	"net/http"

	"github.com/cardhaus/cardhaus-backend/api/responses"
	"github.com/cardhaus/cardhaus-backend/api/validators"
	"github.com/cardhaus/cardhaus-backend/internal/shipping"
	pkgerrors "github.com/cardhaus/cardhaus-backend/pkg/errors"
	"github.com/cardhaus/cardhaus-backend/pkg/logger"
)

type shippingQuoteResponse struct {
	CardCount     int `json:"card_count"`
	EconomyCents  int `json:"economy_cents"`
	StandardCents int `json:"standard_cents"`
	ExpressCents  int `json:"express_cents"`
}

// ShippingQuote returns the consolidated shipping tier for a card count.
func ShippingQuote(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := validators.ParseQueryInt(r, "count", 0, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if count == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "count is required"))
			return
		}
		quote, err := shipping.QuoteConsolidated(count)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shippingQuoteResponse{
			CardCount:     quote.CardCount,
			EconomyCents:  quote.EconomyCents,
			StandardCents: quote.StandardCents,
			ExpressCents:  quote.ExpressCents,
		})
	}
}
