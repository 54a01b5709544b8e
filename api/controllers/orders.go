package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cardhaus/cardhaus-backend/api/middleware"
	"github.com/cardhaus/cardhaus-backend/api/responses"
	internalorders "github.com/cardhaus/cardhaus-backend/internal/orders"
	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	pkgerrors "github.com/cardhaus/cardhaus-backend/pkg/errors"
	"github.com/cardhaus/cardhaus-backend/pkg/logger"
)

type orderItemResponse struct {
	ItemID     uuid.UUID `json:"item_id"`
	CardID     uuid.UUID `json:"card_id"`
	ExternalID string    `json:"external_id"`
	Title      string    `json:"title"`
	ImageURL   string    `json:"image_url,omitempty"`
	PriceCents int       `json:"price_cents"`
}

type orderResponse struct {
	OrderID         uuid.UUID           `json:"order_id"`
	Type            string              `json:"type"`
	Status          string              `json:"status"`
	SubtotalCents   int                 `json:"subtotal_cents"`
	ShippingCents   int                 `json:"shipping_cents"`
	TotalCents      int                 `json:"total_cents"`
	ShippingMethod  string              `json:"shipping_method"`
	ShippingSpeed   *string             `json:"shipping_speed,omitempty"`
	RelatedOrderIDs []uuid.UUID         `json:"related_order_ids,omitempty"`
	TrackingNumber  *string             `json:"tracking_number,omitempty"`
	Carrier         *string             `json:"carrier,omitempty"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	Items           []orderItemResponse `json:"items"`
}

func newOrderResponse(order models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ItemID:     item.ID,
			CardID:     item.CardID,
			ExternalID: item.ExternalID,
			Title:      item.Title,
			ImageURL:   item.ImageURL,
			PriceCents: item.PriceCents,
		})
	}
	resp := orderResponse{
		OrderID:         order.ID,
		Type:            string(order.Type),
		Status:          string(order.Status),
		SubtotalCents:   order.SubtotalCents,
		ShippingCents:   order.ShippingCents,
		TotalCents:      order.TotalCents,
		ShippingMethod:  string(order.ShippingMethod),
		RelatedOrderIDs: order.RelatedOrderIDs,
		TrackingNumber:  order.TrackingNumber,
		Carrier:         order.Carrier,
		PaidAt:          order.PaidAt,
		ShippedAt:       order.ShippedAt,
		CreatedAt:       order.CreatedAt,
		Items:           items,
	}
	if order.ShippingSpeed != nil {
		speed := string(*order.ShippingSpeed)
		resp.ShippingSpeed = &speed
	}
	return resp
}

func newOrderListResponse(list []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for _, order := range list {
		out = append(out, newOrderResponse(order))
	}
	return out
}

func buyerIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}

func orderIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

// ListOrders returns the caller's purchase and shipping orders.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForBuyer(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderListResponse(list))
	}
}

// ListStoredOrders returns paid orders sitting in vault storage, the
// candidates for a consolidated shipment.
func ListStoredOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListStoredForBuyer(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderListResponse(list))
	}
}

// GetOrder returns a single order owned by the caller.
func GetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetForBuyer(r.Context(), buyerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}
