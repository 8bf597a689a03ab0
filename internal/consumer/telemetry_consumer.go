package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"farmhub-actuation/internal/models"
	"farmhub-actuation/internal/pipeline"

	"go.uber.org/zap"
)

// Subscriber 遥测订阅入口（由 mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Unsubscribe(topics ...string) error
}

// TelemetryConsumer 遥测MQTT消费者
// 订阅 sensor/{device_id}/data，把读数送入处理管线
type TelemetryConsumer struct {
	telemetryTopic string
	subscriber     Subscriber
	pipeline       *pipeline.Pipeline
	logger         *zap.Logger
}

// NewTelemetryConsumer 创建遥测消费者
func NewTelemetryConsumer(telemetryTopic string, subscriber Subscriber, p *pipeline.Pipeline, logger *zap.Logger) *TelemetryConsumer {
	return &TelemetryConsumer{
		telemetryTopic: telemetryTopic,
		subscriber:     subscriber,
		pipeline:       p,
		logger:         logger,
	}
}

// Start 订阅遥测主题
func (c *TelemetryConsumer) Start() error {
	if err := c.subscriber.Subscribe(c.telemetryTopic, 1, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to telemetry topic: %w", err)
	}

	c.logger.Info("Telemetry consumer started",
		zap.String("topic", c.telemetryTopic),
	)
	return nil
}

// Stop 取消订阅
func (c *TelemetryConsumer) Stop() {
	if err := c.subscriber.Unsubscribe(c.telemetryTopic); err != nil {
		c.logger.Error("Failed to unsubscribe from telemetry topic", zap.Error(err))
	}
}

// HandleMessage 处理单条遥测消息
// 主题格式: sensor/{device_id}/data，载荷为 SensorReading JSON
func (c *TelemetryConsumer) HandleMessage(topic string, payload []byte) error {
	var reading models.SensorReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		c.logger.Warn("Failed to unmarshal telemetry message, dropping",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal telemetry: %w", err)
	}

	// 载荷缺 device_id 时从主题补齐
	if reading.DeviceID == "" {
		parts := strings.Split(topic, "/")
		if len(parts) >= 3 {
			reading.DeviceID = parts[1]
		}
	}

	if reading.SensorID == "" {
		c.logger.Warn("Telemetry message without sensor_id, dropping",
			zap.String("topic", topic),
		)
		return fmt.Errorf("telemetry missing sensor_id")
	}

	c.logger.Debug("Received sensor reading",
		zap.String("sensor_id", reading.SensorID),
		zap.String("device_id", reading.DeviceID),
		zap.Float64("value", reading.Value),
	)

	c.pipeline.ProcessReading(context.Background(), reading)
	return nil
}
