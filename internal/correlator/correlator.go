package correlator

import (
	"context"
	"encoding/json"
	"fmt"

	"farmhub-actuation/internal/models"
	"farmhub-actuation/internal/supervisor"

	"go.uber.org/zap"
)

// Subscriber 回执订阅入口（由 mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Unsubscribe(topics ...string) error
}

// Correlator 回执关联器
// 订阅 actuator/{device_id}/status，按 action_id 解析回执并交给 supervisor 裁决。
// 迟到/重复/未知 action_id 的回执静默丢弃
type Correlator struct {
	statusTopic string
	subscriber  Subscriber
	supervisor  *supervisor.Supervisor
	logger      *zap.Logger
}

// NewCorrelator 创建回执关联器
func NewCorrelator(statusTopic string, subscriber Subscriber, sup *supervisor.Supervisor, logger *zap.Logger) *Correlator {
	return &Correlator{
		statusTopic: statusTopic,
		subscriber:  subscriber,
		supervisor:  sup,
		logger:      logger,
	}
}

// Start 订阅回执主题
func (c *Correlator) Start() error {
	if err := c.subscriber.Subscribe(c.statusTopic, 1, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to status topic: %w", err)
	}

	c.logger.Info("Acknowledgment correlator started",
		zap.String("topic", c.statusTopic),
	)
	return nil
}

// Stop 取消订阅
func (c *Correlator) Stop() {
	if err := c.subscriber.Unsubscribe(c.statusTopic); err != nil {
		c.logger.Error("Failed to unsubscribe from status topic", zap.Error(err))
	}
}

// HandleMessage 处理单条回执消息
func (c *Correlator) HandleMessage(topic string, payload []byte) error {
	var msg models.AckMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn("Failed to unmarshal ack message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal ack message: %w", err)
	}

	if msg.ActionID == "" {
		c.logger.Warn("Ack message without action_id, discarding",
			zap.String("topic", topic),
		)
		return fmt.Errorf("ack message missing action_id")
	}

	switch msg.Result {
	case models.AckResultOK, models.AckResultError:
	default:
		c.logger.Warn("Ack message with unknown result, discarding",
			zap.String("action_id", msg.ActionID),
			zap.String("result", msg.Result),
		)
		return fmt.Errorf("unknown ack result: %s", msg.Result)
	}

	c.logger.Debug("Received ack message",
		zap.String("action_id", msg.ActionID),
		zap.String("device_id", msg.DeviceID),
		zap.String("result", msg.Result),
	)

	c.supervisor.Resolve(context.Background(), msg.ActionID, msg.Result, msg.Message)
	return nil
}
