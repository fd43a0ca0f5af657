package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", hash, "hash must not contain the clear password")

	assert.True(t, CheckPassword("secret", hash))
	assert.False(t, CheckPassword("Secret", hash), "password comparison is exact")
	assert.False(t, CheckPassword(" secret", hash))
	assert.False(t, CheckPassword("", hash))
}

func TestHashPasswordSalted(t *testing.T) {
	h1, err := HashPassword("secret")
	require.NoError(t, err)
	h2, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "same password must hash differently per salt")
}

func TestGenerateSessionToken(t *testing.T) {
	t1, err := GenerateSessionToken()
	require.NoError(t, err)
	t2, err := GenerateSessionToken()
	require.NoError(t, err)

	assert.Len(t, t1, tokenBytes*2)
	assert.NotEqual(t, t1, t2)
}
