package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cardhaus/cardhaus-backend/api/responses"
	"github.com/cardhaus/cardhaus-backend/api/validators"
	internalorders "github.com/cardhaus/cardhaus-backend/internal/orders"
	"github.com/cardhaus/cardhaus-backend/internal/settlement"
	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	pkgerrors "github.com/cardhaus/cardhaus-backend/pkg/errors"
	"github.com/cardhaus/cardhaus-backend/pkg/logger"
)

type transferRecordResponse struct {
	CardID           uuid.UUID  `json:"card_id"`
	SellerUserID     *uuid.UUID `json:"seller_user_id,omitempty"`
	StripeAccountID  *string    `json:"stripe_account_id,omitempty"`
	AmountCents      int        `json:"amount_cents"`
	Status           string     `json:"status"`
	StripeTransferID *string    `json:"stripe_transfer_id,omitempty"`
	FailureReason    *string    `json:"failure_reason,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type settlementReportResponse struct {
	OrderID   uuid.UUID                `json:"order_id"`
	Transfers []transferRecordResponse `json:"transfers"`
	Succeeded int                      `json:"succeeded"`
	Failed    int                      `json:"failed"`
	Retained  int                      `json:"retained"`
	Pending   int                      `json:"pending"`
}

func newSettlementReport(orderID uuid.UUID, records []models.TransferRecord) settlementReportResponse {
	report := settlementReportResponse{OrderID: orderID}
	for _, record := range records {
		report.Transfers = append(report.Transfers, transferRecordResponse{
			CardID:           record.CardID,
			SellerUserID:     record.SellerUserID,
			StripeAccountID:  record.StripeAccountID,
			AmountCents:      record.AmountCents,
			Status:           string(record.Status),
			StripeTransferID: record.StripeTransferID,
			FailureReason:    record.FailureReason,
			UpdatedAt:        record.UpdatedAt,
		})
		switch record.Status {
		case enums.TransferStatusSucceeded:
			report.Succeeded++
		case enums.TransferStatusFailed:
			report.Failed++
		case enums.TransferStatusRetained:
			report.Retained++
		default:
			report.Pending++
		}
	}
	return report
}

// AdminListOrders returns every order, newest first.
func AdminListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1000000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListAll(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderListResponse(list))
	}
}

// AdminOrderTransfers returns the settlement ledger for one order, including
// failed and retained rows that need operator follow-up.
func AdminOrderTransfers(ledger settlement.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement ledger unavailable"))
			return
		}
		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		records, err := ledger.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transfer records"))
			return
		}
		responses.WriteSuccess(w, newSettlementReport(orderID, records))
	}
}

type shipOrderRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required"`
	Carrier        string `json:"carrier" validate:"required"`
}

// AdminShipOrder records the manual ship action for a paid or stored order.
func AdminShipOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload shipOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.MarkShipped(r.Context(), internalorders.MarkShippedInput{
			OrderID:        orderID,
			TrackingNumber: payload.TrackingNumber,
			Carrier:        payload.Carrier,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}
