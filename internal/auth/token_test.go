package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.Issue(42, RoleAdmin)
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret", time.Hour).Issue(1, RoleCustomer)
	require.NoError(t, err)

	_, err = NewTokenManager("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewTokenManager("secret", -time.Minute)

	token, err := m.Issue(1, RoleCustomer)
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Garbage(t *testing.T) {
	_, err := NewTokenManager("secret", time.Hour).Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
