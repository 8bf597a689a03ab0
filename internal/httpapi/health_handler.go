package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	db            *sql.DB
	redisClient   *redis.Client
	mqttConnected func() bool
	logger        *zap.Logger
}

// NewHealthHandler 创建健康检查处理器
// mqttConnected 可为 nil（不检查 MQTT 连接）
func NewHealthHandler(db *sql.DB, redisClient *redis.Client, mqttConnected func() bool, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:            db,
		redisClient:   redisClient,
		mqttConnected: mqttConnected,
		logger:        logger,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Health GET /core/api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	services := make(map[string]string)

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			status = "unhealthy"
			services["database"] = "unhealthy: " + err.Error()
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "not configured"
	}

	if h.redisClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			status = "unhealthy"
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	if h.mqttConnected != nil {
		if h.mqttConnected() {
			services["mqtt"] = "healthy"
		} else {
			status = "unhealthy"
			services["mqtt"] = "unhealthy: not connected"
		}
	} else {
		services["mqtt"] = "not configured"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
	})
}
