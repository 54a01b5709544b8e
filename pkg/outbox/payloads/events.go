package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/cardhaus/cardhaus-backend/pkg/enums"
)

// OrderPaidEvent is emitted when a checkout session settles against an order.
type OrderPaidEvent struct {
	OrderID        uuid.UUID            `json:"order_id"`
	BuyerUserID    uuid.UUID            `json:"buyer_user_id"`
	ShippingMethod enums.ShippingMethod `json:"shipping_method"`
	SubtotalCents  int64                `json:"subtotal_cents"`
	ShippingCents  int64                `json:"shipping_cents"`
	TotalCents     int64                `json:"total_cents"`
	PaidAt         time.Time            `json:"paid_at"`
}

// OrderStoredEvent is emitted when paid cards are moved into vault storage.
type OrderStoredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	BuyerUserID uuid.UUID `json:"buyer_user_id"`
	CardCount   int       `json:"card_count"`
}

// OrderShippedEvent reports carrier details once a shipment leaves the vault.
type OrderShippedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	BuyerUserID    uuid.UUID `json:"buyer_user_id"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	ShippedAt      time.Time `json:"shipped_at"`
}

// ShippingOrderPaidEvent links a consolidation shipment to the stored orders it covers.
type ShippingOrderPaidEvent struct {
	ShippingOrderID uuid.UUID   `json:"shipping_order_id"`
	BuyerUserID     uuid.UUID   `json:"buyer_user_id"`
	RelatedOrderIDs []uuid.UUID `json:"related_order_ids"`
	ShippingCents   int64       `json:"shipping_cents"`
}

// CardsSoldEvent is emitted when listed cards flip to sold.
type CardsSoldEvent struct {
	OrderID uuid.UUID   `json:"order_id"`
	CardIDs []uuid.UUID `json:"card_ids"`
}

// SettlementCompletedEvent summarizes a finished payout run.
type SettlementCompletedEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	TransferCount   int       `json:"transfer_count"`
	FailedCount     int       `json:"failed_count"`
	RetainedCount   int       `json:"retained_count"`
	TotalPaidCents  int64     `json:"total_paid_cents"`
}

// TransferFailedEvent flags a single seller payout that needs operator attention.
type TransferFailedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	CardID       uuid.UUID `json:"card_id"`
	SellerUserID uuid.UUID `json:"seller_user_id"`
	AmountCents  int64     `json:"amount_cents"`
	Reason       string    `json:"reason,omitempty"`
}

// FundsRetainedEvent records seller proceeds held on the platform account
// because the seller has no payable Stripe account.
type FundsRetainedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	CardID       uuid.UUID `json:"card_id"`
	SellerUserID uuid.UUID `json:"seller_user_id"`
	AmountCents  int64     `json:"amount_cents"`
}
