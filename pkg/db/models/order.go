package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/cardhaus/cardhaus-backend/pkg/db/types"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
)

// Order represents a buyer's purchase or a shipping-only consolidation order.
// Rows are created at checkout initiation and mutated only by the webhook
// pipeline and the operator shipping flow; they are never deleted.
type Order struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerUserID           uuid.UUID            `gorm:"column:buyer_user_id;type:uuid;not null"`
	Type                  enums.OrderType      `gorm:"column:order_type;type:order_type_enum;not null;default:'purchase'"`
	Status                enums.OrderStatus    `gorm:"column:status;type:order_status_enum;not null;default:'pending'"`
	SubtotalCents         int                  `gorm:"column:subtotal_cents;not null"`
	ShippingCents         int                  `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents            int                  `gorm:"column:total_cents;not null"`
	ShippingMethod        enums.ShippingMethod `gorm:"column:shipping_method;type:shipping_method_enum;not null"`
	ShippingSpeed         *enums.ShippingSpeed `gorm:"column:shipping_speed;type:shipping_speed_enum"`
	ShippingAddress       string               `gorm:"column:shipping_address;type:text"`
	RelatedOrderIDs       dbtypes.UUIDArray    `gorm:"column:related_order_ids;type:uuid[]"`
	StripeSessionID       *string              `gorm:"column:stripe_session_id"`
	StripePaymentIntentID *string              `gorm:"column:stripe_payment_intent_id"`
	TrackingNumber        *string              `gorm:"column:tracking_number"`
	Carrier               *string              `gorm:"column:carrier"`
	PaidAt                *time.Time           `gorm:"column:paid_at"`
	ShippedAt             *time.Time           `gorm:"column:shipped_at"`
	Items                 []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
