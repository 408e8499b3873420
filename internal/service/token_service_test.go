package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindpath/study-plan-api/internal/models"
)

const testTokenSecret = "unit-test-secret"

func signTestToken(t *testing.T, claims models.JWTClaims, secret string, method jwt.SigningMethod) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateTokenSuccess(t *testing.T) {
	service := NewTokenService(testTokenSecret, nil)

	signed := signTestToken(t, models.JWTClaims{
		UserID: "learner-1",
		Role:   "learner",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testTokenSecret, jwt.SigningMethodHS256)

	claims, err := service.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "learner-1", claims.UserID)
	assert.Equal(t, "learner", claims.Role)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	service := NewTokenService(testTokenSecret, nil)

	signed := signTestToken(t, models.JWTClaims{
		UserID: "learner-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, testTokenSecret, jwt.SigningMethodHS256)

	_, err := service.ValidateToken(signed)
	require.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	service := NewTokenService(testTokenSecret, nil)

	signed := signTestToken(t, models.JWTClaims{
		UserID: "learner-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, "another-secret", jwt.SigningMethodHS256)

	_, err := service.ValidateToken(signed)
	require.Error(t, err)
}

func TestValidateTokenRejectsMissingIdentity(t *testing.T) {
	service := NewTokenService(testTokenSecret, nil)

	signed := signTestToken(t, models.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testTokenSecret, jwt.SigningMethodHS256)

	_, err := service.ValidateToken(signed)
	require.Error(t, err)
}
