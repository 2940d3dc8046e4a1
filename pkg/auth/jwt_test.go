package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHMACService_RequiresSecret(t *testing.T) {
	_, err := NewHMACService("", "healthcare-records")
	assert.Error(t, err)
}

func TestGenerateAndValidate(t *testing.T) {
	svc, err := NewHMACService("s3cret", "healthcare-records")
	require.NoError(t, err)

	token, err := svc.GenerateToken("frontdesk", "records:write", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "frontdesk", claims.Subject)
	assert.Equal(t, "records:write", claims.Scope)
	assert.Equal(t, "healthcare-records", claims.Issuer)
}

func TestValidate_Expired(t *testing.T) {
	svc, err := NewHMACService("s3cret", "")
	require.NoError(t, err)

	token, err := svc.GenerateToken("frontdesk", "", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_WrongSecret(t *testing.T) {
	a, _ := NewHMACService("one", "")
	b, _ := NewHMACService("two", "")

	token, err := a.GenerateToken("x", "", time.Hour)
	require.NoError(t, err)

	_, err = b.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_WrongIssuer(t *testing.T) {
	a, _ := NewHMACService("s3cret", "other")
	b, _ := NewHMACService("s3cret", "healthcare-records")

	token, err := a.GenerateToken("x", "", time.Hour)
	require.NoError(t, err)

	_, err = b.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RejectsNoneAlg(t *testing.T) {
	svc, _ := NewHMACService("s3cret", "")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
