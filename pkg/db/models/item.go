package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/rewear/rewear-backend/pkg/db/types"
	"github.com/rewear/rewear-backend/pkg/enums"
)

// Item is a clothing listing. Only approved and available items can be swapped.
type Item struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     uuid.UUID              `gorm:"column:owner_id;type:uuid;not null;index"`
	Title       string                 `gorm:"column:title;not null"`
	Description string                 `gorm:"column:description;not null"`
	Category    string                 `gorm:"column:category;not null"`
	Type        string                 `gorm:"column:type;not null"`
	Size        string                 `gorm:"column:size;not null"`
	Condition   string                 `gorm:"column:condition;not null"`
	Tags        dbtypes.StringList     `gorm:"column:tags;type:jsonb;not null"`
	Images      dbtypes.StringList     `gorm:"column:images;type:jsonb;not null"`
	Status      enums.ModerationStatus `gorm:"column:status;type:text;not null;default:pending;index"`
	Available   bool                   `gorm:"column:available;not null;default:true"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string { return "items" }

func (i *Item) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Status == "" {
		i.Status = enums.ModerationStatusPending
	}
	if i.Tags == nil {
		i.Tags = dbtypes.StringList{}
	}
	if i.Images == nil {
		i.Images = dbtypes.StringList{}
	}
	return nil
}

// Swappable reports whether a new swap request may target the item.
func (i Item) Swappable() bool {
	return i.Available && i.Status == enums.ModerationStatusApproved
}
