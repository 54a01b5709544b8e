package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerProfile holds a seller's payout destination. Eligibility requires both
// a connected account and payouts enabled; the two flags are independent.
type SellerProfile struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	DisplayName     string    `gorm:"column:display_name;not null"`
	Email           string    `gorm:"column:email;not null"`
	StripeAccountID *string   `gorm:"column:stripe_account_id"`
	PayoutsEnabled  bool      `gorm:"column:payouts_enabled;not null;default:false"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// PayoutEligible reports whether split-payment instructions may target this seller.
func (p *SellerProfile) PayoutEligible() bool {
	if p == nil {
		return false
	}
	return p.StripeAccountID != nil && *p.StripeAccountID != "" && p.PayoutsEnabled
}
