package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cardhaus/cardhaus-backend/api/responses"
	"github.com/cardhaus/cardhaus-backend/api/validators"
	checkoutsvc "github.com/cardhaus/cardhaus-backend/internal/checkout"
	"github.com/cardhaus/cardhaus-backend/internal/fees"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	pkgerrors "github.com/cardhaus/cardhaus-backend/pkg/errors"
	"github.com/cardhaus/cardhaus-backend/pkg/logger"
)

type checkoutRequest struct {
	CardIDs        []uuid.UUID `json:"card_ids" validate:"required,min=1,dive,required"`
	ShippingMethod string      `json:"shipping_method" validate:"required,oneof=ship_now store"`
	ShippingSpeed  *string     `json:"shipping_speed,omitempty" validate:"omitempty,oneof=economy standard express"`
	Address        string      `json:"address,omitempty"`
}

type shippingCheckoutRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1,dive,required"`
	Speed    string      `json:"speed" validate:"required,oneof=economy standard express"`
	Address  string      `json:"address" validate:"required"`
}

type checkoutResponse struct {
	OrderID    uuid.UUID        `json:"order_id"`
	SessionURL string           `json:"session_url"`
	Breakdown  feeBreakdownBody `json:"breakdown"`
}

type feeBreakdownBody struct {
	SubtotalCents    int `json:"subtotal_cents"`
	ShippingCents    int `json:"shipping_cents"`
	BuyerFeeCents    int `json:"buyer_fee_cents"`
	TotalCents       int `json:"total_cents"`
	PlatformFeeCents int `json:"platform_fee_cents"`
}

func newCheckoutResponse(result *checkoutsvc.StartResult) checkoutResponse {
	if result == nil {
		return checkoutResponse{}
	}
	return checkoutResponse{
		OrderID:    result.OrderID,
		SessionURL: result.SessionURL,
		Breakdown:  newFeeBreakdownBody(result.Breakdown),
	}
}

func newFeeBreakdownBody(b fees.Breakdown) feeBreakdownBody {
	return feeBreakdownBody{
		SubtotalCents:    b.SubtotalCents,
		ShippingCents:    b.ShippingCents,
		BuyerFeeCents:    b.BuyerFeeCents,
		TotalCents:       b.TotalCents,
		PlatformFeeCents: b.PlatformFeeCents,
	}
}

// Checkout starts a purchase checkout session for the selected cards.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.StartInput{
			CardIDs:        payload.CardIDs,
			ShippingMethod: enums.ShippingMethod(payload.ShippingMethod),
			Address:        payload.Address,
		}
		if payload.ShippingSpeed != nil {
			speed := enums.ShippingSpeed(*payload.ShippingSpeed)
			input.ShippingSpeed = &speed
		}

		result, err := svc.Start(r.Context(), buyerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

// CheckoutShipping starts a checkout session that pays for a consolidated
// shipment of stored orders.
func CheckoutShipping(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shippingCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.StartShipping(r.Context(), buyerID, checkoutsvc.ShippingInput{
			OrderIDs: payload.OrderIDs,
			Speed:    enums.ShippingSpeed(payload.Speed),
			Address:  payload.Address,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}
