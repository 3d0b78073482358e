package items

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
	"github.com/rewear/rewear-backend/pkg/pagination"
)

// ErrItemUnavailable is returned when an item was already taken off the market.
var ErrItemUnavailable = errors.New("item unavailable")

// Repository persists clothing listings.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListSwappable pages through approved, available items newest first.
func (r *Repository) ListSwappable(ctx context.Context, params pagination.Params) (pagination.Page[models.Item], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Item]{}, err
	}

	qb := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("status = ? AND available = ?", enums.ModerationStatusApproved, true)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Item
	if err := qb.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return pagination.Page[models.Item]{}, err
	}
	return pagination.Build(rows, params.Limit, itemCursor), nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	var rows []models.Item
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByStatus(ctx context.Context, status enums.ModerationStatus) ([]models.Item, error) {
	var rows []models.Item
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// UpdateStatus returns gorm.ErrRecordNotFound when no row matched.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ModerationStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkUnavailable takes an item off the market once a swap settles. It only
// flips an item that is still available, so a second settlement loses.
func (r *Repository) MarkUnavailable(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND available = ?", id, true).
		Update("available", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrItemUnavailable
	}
	return nil
}

// Delete removes the item together with any swap requests that reference it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("item_id = ?", id).Delete(&models.SwapRequest{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&models.Item{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func itemCursor(item models.Item) pagination.Cursor {
	return pagination.Cursor{CreatedAt: item.CreatedAt, ID: item.ID}
}
