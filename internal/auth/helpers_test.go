package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rewear/rewear-backend/pkg/config"
	"github.com/rewear/rewear-backend/pkg/security"
)

type stubSessionManager struct {
	opened  map[string]uuid.UUID
	revoked []string
	openErr error
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{opened: map[string]uuid.UUID{}}
}

func (s *stubSessionManager) Open(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.openErr != nil {
		return "", s.openErr
	}
	id := uuid.NewString()
	s.opened[id] = userID
	return id, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	delete(s.opened, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "rewear", ExpirationMinutes: 60}
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	require.NoError(t, err)
	return hash
}
