package settlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/cardhaus/cardhaus-backend/pkg/db"
	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
)

// Repository is the transfer ledger. Claiming a row is the replay guard:
// the (order_id, card_id) unique index means exactly one settlement attempt
// owns each payout.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Claim(ctx context.Context, record *models.TransferRecord) (bool, enums.TransferStatus, error)
	MarkSucceeded(ctx context.Context, orderID, cardID uuid.UUID, transferID string) error
	MarkFailed(ctx context.Context, orderID, cardID uuid.UUID, reason string) error
	CreateRetained(ctx context.Context, record *models.TransferRecord) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TransferRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transfer ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Claim inserts a pending ledger row. When the (order, card) pair is already
// claimed by an earlier attempt it returns false plus the existing row's
// status, so callers can tell a settled payout from a failed one.
func (r *repository) Claim(ctx context.Context, record *models.TransferRecord) (bool, enums.TransferStatus, error) {
	record.Status = enums.TransferStatusPending
	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_transfer_records_order_card") {
			var existing models.TransferRecord
			lookupErr := r.db.WithContext(ctx).
				Select("status").
				Where("order_id = ? AND card_id = ?", record.OrderID, record.CardID).
				First(&existing).Error
			if lookupErr != nil {
				return false, "", lookupErr
			}
			return false, existing.Status, nil
		}
		return false, "", err
	}
	return true, "", nil
}

func (r *repository) MarkSucceeded(ctx context.Context, orderID, cardID uuid.UUID, transferID string) error {
	return r.db.WithContext(ctx).
		Model(&models.TransferRecord{}).
		Where("order_id = ? AND card_id = ?", orderID, cardID).
		Updates(map[string]any{
			"status":             enums.TransferStatusSucceeded,
			"stripe_transfer_id": transferID,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, orderID, cardID uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.TransferRecord{}).
		Where("order_id = ? AND card_id = ?", orderID, cardID).
		Updates(map[string]any{
			"status":         enums.TransferStatusFailed,
			"failure_reason": reason,
		}).Error
}

// CreateRetained records seller proceeds held on the platform account because
// the seller cannot receive payouts. Replays are ignored via the unique index.
func (r *repository) CreateRetained(ctx context.Context, record *models.TransferRecord) error {
	record.Status = enums.TransferStatusRetained
	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil && dbpkg.IsUniqueViolation(err, "ux_transfer_records_order_card") {
		return nil
	}
	return err
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TransferRecord, error) {
	var records []models.TransferRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}
