package sellers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
)

// Repository exposes seller profile lookups used by checkout and settlement.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.SellerProfile, error)
	FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.SellerProfile, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a seller profile repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.SellerProfile, error) {
	var profile models.SellerProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.SellerProfile, error) {
	result := make(map[uuid.UUID]models.SellerProfile, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	var profiles []models.SellerProfile
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	for _, profile := range profiles {
		result[profile.UserID] = profile
	}
	return result, nil
}
