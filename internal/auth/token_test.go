package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	tokens := NewTokens("super-secret", "task-manager", time.Hour)
	tok, err := tokens.Issue("user-123")
	require.NoError(t, err)

	sub, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", sub)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	tokens := NewTokens("secret", "", time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := tokens.Issue("u1")
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokens("right-secret", "", time.Hour).Issue("u2")
	require.NoError(t, err)

	_, err = NewTokens("wrong-secret", "", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongIssuer(t *testing.T) {
	t.Parallel()

	tok, err := NewTokens("k", "someone-else", time.Hour).Issue("u2")
	require.NoError(t, err)

	_, err = NewTokens("k", "task-manager", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	tokens := NewTokens("k", "", time.Hour)
	_, err := tokens.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestVerify_RejectsUnsignedAlgorithm(t *testing.T) {
	t.Parallel()

	claims := jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokens("k", "", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewTokens("k", "", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tok, err := BearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, err = BearerToken("bearer   xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc", "abc"} {
		_, err := BearerToken(header)
		assert.ErrorIs(t, err, ErrMissingToken, header)
	}
}
