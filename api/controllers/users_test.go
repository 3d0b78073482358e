package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewear/rewear-backend/internal/users"
	"github.com/rewear/rewear-backend/pkg/enums"
	pkgerrors "github.com/rewear/rewear-backend/pkg/errors"
)

type fakeProfileService func(ctx context.Context, userID uuid.UUID) (*users.ProfileDTO, error)

func (f fakeProfileService) Profile(ctx context.Context, userID uuid.UUID) (*users.ProfileDTO, error) {
	return f(ctx, userID)
}

func TestUserProfile(t *testing.T) {
	known := uuid.New()
	svc := fakeProfileService(func(ctx context.Context, userID uuid.UUID) (*users.ProfileDTO, error) {
		if userID != known {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return &users.ProfileDTO{UserDTO: users.UserDTO{ID: known, Name: "Ana", Points: 55}}, nil
	})

	rec := httptest.NewRecorder()
	UserProfile(svc, nil).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/user/profile", nil), known, enums.RoleUser))
	require.Equal(t, http.StatusOK, rec.Code)
	var profile users.ProfileDTO
	decodeData(t, rec, &profile)
	assert.Equal(t, int64(55), profile.Points)

	rec = httptest.NewRecorder()
	UserProfile(svc, nil).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/user/profile", nil), uuid.New(), enums.RoleUser))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
