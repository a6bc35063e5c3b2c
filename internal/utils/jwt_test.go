package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("jwt-test-secret")
	userID := uuid.New()

	token, err := GenerateJWT(userID, "alice", "customer", 1)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "customer", claims.UserType)

	SetJWTSecret("rotated")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	SetJWTSecret("jwt-test-secret")
	token, err := GenerateJWT(uuid.New(), "bob", "admin", -1)
	require.NoError(t, err)

	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	SetJWTSecret("jwt-test-secret")
	userID := uuid.New()

	refresh, err := GenerateRefreshToken(userID, 24)
	require.NoError(t, err)

	subject, err := ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), subject)

	_, err = ValidateJWT(refresh)
	assert.Error(t, err)

	access, err := GenerateJWT(userID, "alice", "customer", 1)
	require.NoError(t, err)
	_, err = ValidateRefreshToken(access)
	assert.Error(t, err)
}
