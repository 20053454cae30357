package service

import (
	"testing"
	"time"

	"vendor-payout-ledger/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "test-issuer")
	vendorID := uuid.New()

	tokenStr, expiresAt, err := svc.Generate(vendorID, ports.RoleVendor)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, vendorID, claims.Subject)
	assert.Equal(t, ports.RoleVendor, claims.Role)
}

func TestJWTTokenService_AdminRole(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "test-issuer")

	tokenStr, _, err := svc.Generate(uuid.New(), ports.RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, ports.RoleAdmin, claims.Role)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, -1*time.Hour, "test-issuer")

	tokenStr, _, err := svc.Generate(uuid.New(), ports.RoleVendor)
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err, "expired token should fail validation")
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := NewJWTTokenService("secret-1", 24*time.Hour, "issuer")
	svc2 := NewJWTTokenService("secret-2", 24*time.Hour, "issuer")

	tokenStr, _, err := svc1.Generate(uuid.New(), ports.RoleVendor)
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err, "token signed with different secret should fail")
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	issuerA := NewJWTTokenService(testJWTSecret, time.Hour, "issuer-a")
	issuerB := NewJWTTokenService(testJWTSecret, time.Hour, "issuer-b")

	tokenStr, _, err := issuerA.Generate(uuid.New(), ports.RoleAdmin)
	require.NoError(t, err)

	_, err = issuerB.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_UnknownRole(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "issuer")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uuid.New().String(),
		"role": "superuser",
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iss":  "issuer",
	})
	tokenStr, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.ErrorContains(t, err, "unknown role")
}

func TestJWTTokenService_InvalidTokenString(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "issuer")

	_, err := svc.Validate("not.a.valid.jwt")
	assert.Error(t, err)

	_, err = svc.Validate("")
	assert.Error(t, err)
}
