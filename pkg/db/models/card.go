package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cardhaus/cardhaus-backend/pkg/enums"
)

// Card is a sellable unit owned by a seller. Status moves pending -> live ->
// sold; sold is terminal and set exactly once by purchase completion.
type Card struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerUserID uuid.UUID        `gorm:"column:seller_user_id;type:uuid;not null"`
	ExternalID   string           `gorm:"column:external_id;not null"`
	Title        string           `gorm:"column:title;not null"`
	ImageURL     string           `gorm:"column:image_url;type:text"`
	PriceCents   int              `gorm:"column:price_cents;not null"`
	Status       enums.CardStatus `gorm:"column:status;type:card_status_enum;not null;default:'pending'"`
	SoldAt       *time.Time       `gorm:"column:sold_at"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
