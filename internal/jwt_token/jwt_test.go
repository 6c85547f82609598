package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
)

const testPrincipal = id.Principal("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

func newService() *JWTService {
	return NewJWTService("test-signing-key", "test-issuer", "test-audience")
}

func Test_GenerateAccessToken(t *testing.T) {
	svc := newService()
	token, jti, err := svc.GenerateAccessToken(testPrincipal, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEmpty(t, jti)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, testPrincipal, p)
	assert.Equal(t, jti, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := newService().ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthenticated))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	svc := newService()
	token, _, err := svc.GenerateAccessToken(testPrincipal, -time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	token, _, err := NewJWTService("test-signing-key", "test-issuer", "other").GenerateAccessToken(testPrincipal, time.Hour)
	require.NoError(t, err)

	_, err = newService().ValidateToken(token)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthenticated))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	token, _, err := NewJWTService("other-key", "test-issuer", "test-audience").GenerateAccessToken(testPrincipal, time.Hour)
	require.NoError(t, err)

	_, err = newService().ValidateToken(token)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthenticated))
}

func Test_ValidateToken_RejectsNonePrincipal(t *testing.T) {
	svc := newService()
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "not-an-address",
		Issuer:    "test-issuer",
		Audience:  []string{"test-audience"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	token, err := raw.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthenticated))
}

func Test_Adapter(t *testing.T) {
	svc := newService()
	token, jti, err := svc.GenerateAccessToken(testPrincipal, time.Hour)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(svc).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, testPrincipal, claims.Principal)
	assert.Equal(t, jti, claims.JTI)
}
