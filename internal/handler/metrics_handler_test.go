package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/service"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	handler := NewMetricsHandler(nil, map[string]Pinger{"database": ok})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)

	handler = NewMetricsHandler(nil, map[string]Pinger{"database": ok, "redis": down})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.ObserveAggregation("by_learner", 3, 0)

	handler := NewMetricsHandler(metrics, nil)
	c, w := newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "grade_aggregation_duration_seconds")

	handler = NewMetricsHandler(nil, nil)
	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type tokenIssuerMock struct {
	req models.IssueTokenRequest
}

func (m *tokenIssuerMock) IssueToken(req models.IssueTokenRequest) (*models.IssuedToken, error) {
	m.req = req
	return &models.IssuedToken{AccessToken: "signed"}, nil
}

func TestAuthHandlerIssueTokenAndMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := &tokenIssuerMock{}
	handler := NewAuthHandler(issuer)

	c, w := newGinContext(http.MethodPost, "/auth/tokens", []byte(`{"subject":"7","role":"LEARNER"}`))
	handler.IssueToken(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RoleLearner, issuer.req.Role)
	assert.Contains(t, w.Body.String(), "signed")

	c, w = newGinContext(http.MethodGet, "/auth/me", nil)
	handler.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
