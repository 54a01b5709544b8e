package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cardhaus/cardhaus-backend/pkg/enums"
)

// TransferRecord is the settlement ledger. A row is claimed (status pending)
// before any transfer call is issued; the (order_id, card_id) unique index is
// what makes settlement replay-safe.
type TransferRecord struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_transfer_records_order_card"`
	CardID           uuid.UUID            `gorm:"column:card_id;type:uuid;not null;uniqueIndex:ux_transfer_records_order_card"`
	SellerUserID     *uuid.UUID           `gorm:"column:seller_user_id;type:uuid"`
	StripeAccountID  *string              `gorm:"column:stripe_account_id"`
	AmountCents      int                  `gorm:"column:amount_cents;not null"`
	Status           enums.TransferStatus `gorm:"column:status;type:transfer_status_enum;not null;default:'pending'"`
	StripeTransferID *string              `gorm:"column:stripe_transfer_id"`
	PaymentIntentID  *string              `gorm:"column:payment_intent_id"`
	FailureReason    *string              `gorm:"column:failure_reason"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
