package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewTokenMaker_KeyLength(t *testing.T) {
	_, err := NewTokenMaker("short")
	assert.Error(t, err)
}

func TestTokenMaker_RoundTrip(t *testing.T) {
	maker, err := NewTokenMaker(testKey)
	require.NoError(t, err)

	token, err := maker.Generate("doc-1", "doctor", time.Hour)
	require.NoError(t, err)

	claims, err := maker.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", claims.UserID)
	assert.Equal(t, "doctor", claims.Role)
}

func TestTokenMaker_Expired(t *testing.T) {
	maker, err := NewTokenMaker(testKey)
	require.NoError(t, err)

	token, err := maker.Generate("doc-1", "doctor", -time.Minute)
	require.NoError(t, err)

	_, err = maker.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenMaker_WrongKey(t *testing.T) {
	issuer, err := NewTokenMaker(testKey)
	require.NoError(t, err)
	other, err := NewTokenMaker("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)

	token, err := issuer.Generate("pat-1", "patient", time.Hour)
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = issuer.Validate("v2.local.garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
