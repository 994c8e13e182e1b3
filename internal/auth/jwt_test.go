package auth

import (
	"testing"
	"time"

	"github.com/geocoder89/inkwell/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = user.Identity{ID: "0b7c9c1e-6a3f-4d7e-9d8e-1f2a3b4c5d6e", Username: "alice"}

func TestManager_IssueVerifyRoundTrip(t *testing.T) {
	m := NewManager("test-secret", 0)

	raw, err := m.Issue(alice)
	require.NoError(t, err)

	claims, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, alice, claims.Identity())
	assert.Nil(t, claims.ExpiresAt, "no ttl means no exp claim")
}

func TestManager_WrongSecret(t *testing.T) {
	raw, err := NewManager("secret-a", 0).Issue(alice)
	require.NoError(t, err)

	_, err = NewManager("secret-b", 0).Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Expired(t *testing.T) {
	m := NewManager("test-secret", time.Minute)

	issuedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issuedAt }

	raw, err := m.Issue(alice)
	require.NoError(t, err)

	_, err = m.Verify(raw)
	require.NoError(t, err)

	m.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }

	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_RejectsGarbageAndEmpty(t *testing.T) {
	m := NewManager("test-secret", 0)

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := m.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", raw)
	}
}

func TestManager_RejectsNoneAlgorithm(t *testing.T) {
	m := NewManager("test-secret", 0)

	claims := Claims{Username: alice.Username, UserID: alice.ID}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_RejectsMissingIdentity(t *testing.T) {
	m := NewManager("test-secret", 0)

	raw, err := m.Issue(user.Identity{})
	require.NoError(t, err)

	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
