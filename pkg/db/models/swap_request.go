package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rewear/rewear-backend/pkg/enums"
)

// SwapRequest is a requester's bid for an item, settled by the swap ledger.
type SwapRequest struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	RequesterID uuid.UUID        `gorm:"column:requester_id;type:uuid;not null;index"`
	ItemID      uuid.UUID        `gorm:"column:item_id;type:uuid;not null;index"`
	SwapType    enums.SwapType   `gorm:"column:swap_type;type:text;not null"`
	Status      enums.SwapStatus `gorm:"column:status;type:text;not null;default:pending"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime;<-:create"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (SwapRequest) TableName() string { return "swap_requests" }

func (s *SwapRequest) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = enums.SwapStatusPending
	}
	return nil
}
