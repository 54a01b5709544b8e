package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is a denormalized snapshot of a card at time of sale, kept so
// order history stays stable even if the listing is later edited or removed.
type OrderItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	CardID     uuid.UUID `gorm:"column:card_id;type:uuid;not null"`
	ExternalID string    `gorm:"column:external_id;not null"`
	Title      string    `gorm:"column:title;not null"`
	ImageURL   string    `gorm:"column:image_url;type:text"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
