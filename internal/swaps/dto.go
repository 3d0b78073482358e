package swaps

import (
	"time"

	"github.com/google/uuid"

	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
)

// CreateSwapRequest is the body of POST /api/swaps.
type CreateSwapRequest struct {
	ItemID   string `json:"itemId" validate:"required,uuid"`
	SwapType string `json:"swapType" validate:"required,oneof=points direct"`
}

// UpdateStatusRequest is the body of PUT /api/swaps/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected completed"`
}

// SwapDTO is the public shape of a swap request.
type SwapDTO struct {
	ID          uuid.UUID        `json:"id"`
	RequesterID uuid.UUID        `json:"requesterId"`
	ItemID      uuid.UUID        `json:"itemId"`
	SwapType    enums.SwapType   `json:"swapType"`
	Status      enums.SwapStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// Actor is the authenticated caller attempting a transition.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func FromModel(s *models.SwapRequest) *SwapDTO {
	if s == nil {
		return nil
	}
	return &SwapDTO{
		ID:          s.ID,
		RequesterID: s.RequesterID,
		ItemID:      s.ItemID,
		SwapType:    s.SwapType,
		Status:      s.Status,
		CreatedAt:   s.CreatedAt,
	}
}

func FromModels(rows []models.SwapRequest) []SwapDTO {
	out := make([]SwapDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
