package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"municipal-library-backend/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_RoundTrip(t *testing.T) {
	patronID := int32(12)
	user := &domain.User{ID: 7, Email: "desk@library.test", Role: domain.UserRoleStaff, PatronID: &patronID}
	tm := NewTokenManager(testSecret, time.Hour, 24*time.Hour)

	t.Run("Access", func(t *testing.T) {
		token, err := tm.GenerateAccessToken(user)
		require.NoError(t, err)

		claims, err := tm.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, int32(7), claims.UserID)
		assert.Equal(t, domain.UserRoleStaff, claims.Role)
		assert.Equal(t, TokenTypeAccess, claims.Type)
		require.NotNil(t, claims.PatronID)
		assert.Equal(t, int32(12), *claims.PatronID)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("Refresh", func(t *testing.T) {
		token, err := tm.GenerateRefreshToken(user)
		require.NoError(t, err)

		claims, err := tm.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, TokenTypeRefresh, claims.Type)
	})
}

func TestTokenManager_Rejects(t *testing.T) {
	user := &domain.User{ID: 1, Role: domain.UserRoleAdmin}

	t.Run("Expired", func(t *testing.T) {
		tm := NewTokenManager(testSecret, time.Minute, time.Hour).(*tokenManager)
		tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := tm.GenerateAccessToken(user)
		require.NoError(t, err)

		_, err = NewTokenManager(testSecret, time.Minute, time.Hour).ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		token, err := NewTokenManager(testSecret, time.Hour, time.Hour).GenerateAccessToken(user)
		require.NoError(t, err)

		_, err = NewTokenManager("another-secret-another-secret-xx", time.Hour, time.Hour).ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := NewTokenManager(testSecret, time.Hour, time.Hour).ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
