package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	tok, err := GenerateToken("user-123", secret, time.Hour)
	require.NoError(t, err)

	got, err := ParseToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", got)
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("u1", secret, -time.Second)
	require.NoError(t, err)

	_, err = ParseToken(tok, secret)
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseToken_WrongSecretOrGarbage(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u2", []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(tok, []byte("wrong-secret"))
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = ParseToken("not-a-jwt", []byte("x"))
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u3"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(s, []byte("secret"))
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestParseToken_FallsBackToSubject(t *testing.T) {
	t.Parallel()

	secret := []byte("s")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "sub-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString(secret)
	require.NoError(t, err)

	got, err := ParseToken(s, secret)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", got)
}

func TestTokenProvider_SetToken(t *testing.T) {
	secret := []byte("k")
	p := NewTokenProvider(secret, "")
	ctx := context.Background()

	_, err := p.UserID(ctx)
	require.ErrorIs(t, err, ErrUnauthenticated)

	tok, err := GenerateToken("u9", secret, time.Hour)
	require.NoError(t, err)
	p.SetToken(tok)

	id, err := p.UserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u9", id)
}

func TestStatic(t *testing.T) {
	id, err := Static("u1").UserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = Static("").UserID(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)
}
