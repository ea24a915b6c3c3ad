package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_RoundTrip(t *testing.T) {
	token := NewToken("secret", time.Minute)
	signed, err := token.CreateToken(7, "Seven")
	require.NoError(t, err)

	payload, err := token.VerifyToken(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(7), payload.ID)
	assert.Equal(t, "Seven", payload.Name)

	payload, err = token.CheckTokenVars(map[string]string{"sessionToken": signed})
	require.NoError(t, err)
	assert.Equal(t, int64(7), payload.ID)

	_, err = token.CheckTokenVars(map[string]string{})
	assert.Error(t, err)
}

func TestToken_Expired(t *testing.T) {
	token := NewToken("secret", -time.Minute)
	signed, err := token.CreateToken(7, "Seven")
	require.NoError(t, err)

	_, err = token.VerifyToken(signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestToken_WrongSecret(t *testing.T) {
	signer := NewToken("secret", time.Minute)
	signed, err := signer.CreateToken(7, "Seven")
	require.NoError(t, err)

	verifier := NewToken("other", time.Minute)
	_, err = verifier.VerifyToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = verifier.VerifyToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/game", nil)
	assert.Empty(t, ExtractToken(r))

	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", ExtractToken(r))
}

func TestRandomSecret(t *testing.T) {
	first, err := RandomSecret(32)
	require.NoError(t, err)
	second, err := RandomSecret(32)
	require.NoError(t, err)

	assert.Len(t, first, 32)
	assert.NotEqual(t, first, second)
}
