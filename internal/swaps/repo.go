package swaps

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
)

// ErrStatusChanged means the swap no longer had the expected status when the
// write landed, usually because a concurrent request settled it first.
var ErrStatusChanged = errors.New("swap status changed concurrently")

// Repository persists swap requests.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, swap *models.SwapRequest) error {
	return r.db.WithContext(ctx).Create(swap).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	var swap models.SwapRequest
	if err := r.db.WithContext(ctx).First(&swap, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &swap, nil
}

// ListByRequester returns the requester's swaps, newest first.
func (r *Repository) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]models.SwapRequest, error) {
	var rows []models.SwapRequest
	err := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// TransitionStatus is a compare-and-set: the row is only written while it
// still holds from, and a completed row is never rewritten.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.SwapStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.SwapRequest{}).
		Where("id = ? AND status = ? AND status <> ?", id, from, enums.SwapStatusCompleted).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}
