package services

import (
	"context"
	"testing"

	"cobranzas/internal/core"
	"cobranzas/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewAccountService(newTestRepo(t))
	ctx := context.Background()

	id, err := svc.Register(ctx, "Ana", "secret")
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	// The stored username is normalized, so login works regardless of case
	user, err := svc.Authenticate(ctx, "  ANA ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)
	assert.Equal(t, id, user.ID)
}

func TestRegisterNormalizedDuplicate(t *testing.T) {
	svc := NewAccountService(newTestRepo(t))
	ctx := context.Background()

	_, err := svc.Register(ctx, "ana", "secret")
	require.NoError(t, err)

	_, err = svc.Register(ctx, " Ana ", "other")
	assert.ErrorIs(t, err, core.ErrDuplicateUser)
}

func TestRegisterValidation(t *testing.T) {
	svc := NewAccountService(newTestRepo(t))
	ctx := context.Background()

	_, err := svc.Register(ctx, "   ", "secret")
	assert.True(t, core.IsValidationError(err), "blank username should fail validation, got %v", err)

	_, err = svc.Register(ctx, "ana", "")
	assert.True(t, core.IsValidationError(err), "empty password should fail validation, got %v", err)

	_, err = svc.Register(ctx, "ana", "   ")
	assert.True(t, core.IsValidationError(err), "whitespace-only password should fail validation, got %v", err)
}

func TestAuthenticateTrimsPassword(t *testing.T) {
	svc := NewAccountService(newTestRepo(t))
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ana", "secret")
	require.NoError(t, err)

	// Surrounding whitespace never counts as part of the password, on
	// either side of the flow
	user, err := svc.Authenticate(ctx, "ana", " secret ")
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)

	_, err = svc.Register(ctx, "bea", "  hunter2  ")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "bea", "hunter2")
	require.NoError(t, err)
}

func TestAuthenticateFailuresIndistinguishable(t *testing.T) {
	svc := NewAccountService(newTestRepo(t))
	ctx := context.Background()

	_, err := svc.Register(ctx, "ana", "secret")
	require.NoError(t, err)

	_, unknownErr := svc.Authenticate(ctx, "nobody", "secret")
	_, wrongPwErr := svc.Authenticate(ctx, "ana", "wrong")

	assert.ErrorIs(t, unknownErr, core.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongPwErr, core.ErrInvalidCredentials)
	assert.Equal(t, unknownErr, wrongPwErr)
}
