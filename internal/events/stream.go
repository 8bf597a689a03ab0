package events

import (
	"context"
	"time"

	"farmhub-actuation/internal/models"
	"farmhub-actuation/internal/redisx"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ActionEvent 动作生命周期事件（XADD 到 Redis Streams，供下游聚合/推送消费）
type ActionEvent struct {
	Event         string  `json:"event"` // sent, retry, ack, error, failed
	ActionID      string  `json:"action_id"`
	DeviceID      string  `json:"device_id"`
	TargetDevice  string  `json:"target_device_id"`
	Command       string  `json:"command"`
	Status        string  `json:"status"`
	TriggerSource string  `json:"trigger_source"`
	RetryCount    int     `json:"retry_count"`
	ErrorMessage  *string `json:"error_message,omitempty"`
	Timestamp     int64   `json:"timestamp"`
}

// StreamPublisher 动作事件发布器
type StreamPublisher struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewStreamPublisher 创建动作事件发布器
func NewStreamPublisher(redisClient *redis.Client, stream string, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

// PublishActionEvent 发布动作生命周期事件
// 发布失败只记录日志，不影响动作状态机
func (p *StreamPublisher) PublishActionEvent(ctx context.Context, action *models.Action, event string) {
	evt := ActionEvent{
		Event:         event,
		ActionID:      action.ActionID,
		DeviceID:      action.DeviceID,
		TargetDevice:  action.TargetDeviceID,
		Command:       action.Command,
		Status:        action.Status,
		TriggerSource: action.TriggerSource,
		RetryCount:    action.RetryCount,
		ErrorMessage:  action.ErrorMessage,
		Timestamp:     time.Now().Unix(),
	}

	streamID, err := redisx.PublishJSONToStream(ctx, p.redisClient, p.stream, evt)
	if err != nil {
		p.logger.Error("Failed to publish action event to Redis Streams",
			zap.String("stream", p.stream),
			zap.String("action_id", action.ActionID),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("Published action event",
		zap.String("stream", p.stream),
		zap.String("stream_id", streamID),
		zap.String("action_id", action.ActionID),
		zap.String("event", event),
	)
}
