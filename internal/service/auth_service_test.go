package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

func newAuthForTest() *AuthService {
	return NewAuthService(nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "gradebook-api"})
}

func TestIssueAndValidateToken(t *testing.T) {
	svc := newAuthForTest()

	issued, err := svc.IssueToken(models.IssueTokenRequest{Subject: "42", Role: models.RoleLearner, Name: "Ada"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt, time.Minute)

	claims, err := svc.ValidateToken(issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, models.RoleLearner, claims.Role)
	assert.Equal(t, "Ada", claims.Name)
}

func TestIssueTokenValidation(t *testing.T) {
	svc := newAuthForTest()

	_, err := svc.IssueToken(models.IssueTokenRequest{Subject: "1", Role: "PRINCIPAL"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.IssueToken(models.IssueTokenRequest{Role: models.RoleAdmin})
	assert.Error(t, err)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := newAuthForTest()

	expired, err := svc.IssueToken(models.IssueTokenRequest{Subject: "1", Role: models.RoleAdmin, TTL: time.Minute})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(expired.AccessToken)
	assert.Error(t, err)
	svc.now = time.Now

	other := NewAuthService(nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "other", Issuer: "gradebook-api"})
	foreign, err := other.IssueToken(models.IssueTokenRequest{Subject: "1", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign.AccessToken)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{Role: models.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
