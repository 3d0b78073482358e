package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rewear/rewear-backend/internal/users"
	"github.com/rewear/rewear-backend/pkg/config"
	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
	"github.com/rewear/rewear-backend/pkg/logger"
	"github.com/rewear/rewear-backend/pkg/security"
)

type adminUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

// PlatformAdminParams configures the fee account bootstrap.
type PlatformAdminParams struct {
	Users    adminUserRepository
	Admin    config.PlatformAdminConfig
	Password config.PasswordConfig
	// Seed creates the account when it is missing; otherwise a missing account is an error.
	Seed   bool
	Logger *logger.Logger
}

// EnsurePlatformAdmin resolves the account that collects swap fees and returns its id.
func EnsurePlatformAdmin(ctx context.Context, params PlatformAdminParams) (uuid.UUID, error) {
	if params.Users == nil {
		return uuid.Nil, fmt.Errorf("user repository is required")
	}
	email := normalizeEmail(params.Admin.Email)
	if email == "" {
		return uuid.Nil, fmt.Errorf("platform admin email is required")
	}

	existing, err := params.Users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.Role.IsAdmin() && params.Logger != nil {
			params.Logger.Warn(ctx, "platform_admin.role_mismatch")
		}
		return existing.ID, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return uuid.Nil, fmt.Errorf("lookup platform admin: %w", err)
	case !params.Seed:
		return uuid.Nil, fmt.Errorf("platform admin %s not found and seeding is disabled", email)
	}

	hash, err := security.HashPassword(params.Admin.Password, params.Password)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash platform admin password: %w", err)
	}
	created, err := params.Users.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		Name:         params.Admin.Name,
		Points:       int64(params.Admin.StartingPoints),
		Role:         enums.RoleAdmin,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create platform admin: %w", err)
	}
	if params.Logger != nil {
		ctx = params.Logger.WithField(ctx, "admin_id", created.ID.String())
		params.Logger.Info(ctx, "platform_admin.seeded")
	}
	return created.ID, nil
}
