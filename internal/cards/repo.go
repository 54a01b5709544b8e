package cards

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
)

// Repository exposes card reads and the sold transition.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Card, error)
	MarkSold(ctx context.Context, ids []uuid.UUID, soldAt time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cards repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var cards []models.Card
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&cards).Error
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// MarkSold flips cards to sold. Already-sold rows are left untouched so the
// transition stays monotonic under webhook replays.
func (r *repository) MarkSold(ctx context.Context, ids []uuid.UUID, soldAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Card{}).
		Where("id IN ? AND status <> ?", ids, enums.CardStatusSold).
		Updates(map[string]any{
			"status":  enums.CardStatusSold,
			"sold_at": soldAt,
		})
	return result.RowsAffected, result.Error
}
