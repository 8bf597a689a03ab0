package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthAllUp(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	router := NewRouter(zap.NewNop())
	router.RegisterHealthRoute(NewHealthHandler(nil, client, func() bool { return true }, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/core/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Services["redis"])
	assert.Equal(t, "healthy", resp.Services["mqtt"])
	assert.Equal(t, "not configured", resp.Services["database"])
}

func TestHealthRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	router := NewRouter(zap.NewNop())
	router.RegisterHealthRoute(NewHealthHandler(nil, client, func() bool { return true }, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/core/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Contains(t, resp.Services["redis"], "unhealthy")
}

func TestHealthMQTTDisconnected(t *testing.T) {
	router := NewRouter(zap.NewNop())
	router.RegisterHealthRoute(NewHealthHandler(nil, nil, func() bool { return false }, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/core/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Services["mqtt"], "not connected")
}
