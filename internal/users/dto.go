package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
)

// UserDTO is the public user shape returned alongside tokens.
type UserDTO struct {
	ID     uuid.UUID  `json:"id"`
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	Points int64      `json:"points"`
	Role   enums.Role `json:"role"`
}

// ProfileDTO extends UserDTO with account timestamps.
type ProfileDTO struct {
	UserDTO
	CreatedAt time.Time `json:"createdAt"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Name         string
	Points       int64
	Role         enums.Role
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Points: u.Points,
		Role:   u.Role,
	}
}

func ProfileFromModel(u *models.User) *ProfileDTO {
	if u == nil {
		return nil
	}
	return &ProfileDTO{UserDTO: *FromModel(u), CreatedAt: u.CreatedAt}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.RoleUser
	}
	return &models.User{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Name:         c.Name,
		Points:       c.Points,
		Role:         role,
	}
}
