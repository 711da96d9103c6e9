// internal/auth/session_test.go
package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatTokenRoundTrip(t *testing.T) {
	Init()

	playerID := uuid.New()
	gameID := uuid.New()
	token, err := CreateSeatToken(playerID, gameID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := AuthenticateSeatToken(token)
	require.NoError(t, err)
	assert.Equal(t, playerID, claims.PlayerID)
	assert.Equal(t, gameID, claims.GameID)
}

func TestSeatTokenRejectsGarbage(t *testing.T) {
	Init()

	_, err := AuthenticateSeatToken("not-a-jwt")
	require.Error(t, err)

	_, err = AuthenticateSeatToken("")
	require.Error(t, err)
}

func TestSeatTokenRejectsForeignKey(t *testing.T) {
	Init()
	token, err := CreateSeatToken(uuid.New(), uuid.New())
	require.NoError(t, err)

	// Rotate the key pair; previously minted tokens must stop verifying.
	Init()
	_, err = AuthenticateSeatToken(token)
	require.Error(t, err)
}
