package pipeline

import (
	"context"

	"farmhub-actuation/internal/evaluator"
	"farmhub-actuation/internal/matcher"
	"farmhub-actuation/internal/models"

	"go.uber.org/zap"
)

// ConfigProvider 阈值/规则配置来源（由 cache.ConfigCache 实现）
type ConfigProvider interface {
	GetThresholdSpec(ctx context.Context, sensorID, sensorType string) (*models.ThresholdSpec, error)
	GetEnabledRules(ctx context.Context, violationType string) ([]models.ActuatorRule, error)
}

// ActionDispatcher 规则命中后的调度出口（由 dispatcher.Dispatcher 实现）
type ActionDispatcher interface {
	Dispatch(ctx context.Context, match matcher.RuleMatch, vctx models.ViolationContext, violation models.ThresholdViolation) (*models.Action, error)
}

// Notifier 无规则命中/越限告知出口，可为 nil
type Notifier interface {
	NotifyUnmatchedViolation(ctx context.Context, violation models.ThresholdViolation, vctx models.ViolationContext)
}

// Pipeline 读数处理管线：评估 → 匹配 → 逐条调度
// 单条读数的配置错误只跳过该读数，不中断其他读数的处理
type Pipeline struct {
	configs    ConfigProvider
	dispatcher ActionDispatcher
	notifier   Notifier
	logger     *zap.Logger
}

// NewPipeline 创建读数处理管线
func NewPipeline(configs ConfigProvider, dispatcher ActionDispatcher, notifier Notifier, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		configs:    configs,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// ProcessReading 处理一条传感器读数，返回产生的动作（可能为空）
func (p *Pipeline) ProcessReading(ctx context.Context, reading models.SensorReading) []*models.Action {
	spec, err := p.configs.GetThresholdSpec(ctx, reading.SensorID, reading.SensorType)
	if err != nil {
		p.logger.Warn("No threshold spec for sensor, skipping reading",
			zap.String("sensor_id", reading.SensorID),
			zap.Error(err),
		)
		return nil
	}

	violation, err := evaluator.Evaluate(reading, *spec)
	if err != nil {
		// 阈值配置非法：跳过该传感器，直到配置修正
		p.logger.Error("Invalid threshold spec, skipping sensor",
			zap.String("sensor_id", reading.SensorID),
			zap.Error(err),
		)
		return nil
	}
	if violation == nil {
		return nil
	}

	p.logger.Info("Threshold violation detected",
		zap.String("sensor_id", violation.SensorID),
		zap.String("violation_type", violation.ViolationType),
		zap.Float64("value", violation.Value),
	)

	rules, err := p.configs.GetEnabledRules(ctx, violation.ViolationType)
	if err != nil {
		p.logger.Error("Failed to load actuator rules",
			zap.String("violation_type", violation.ViolationType),
			zap.Error(err),
		)
		return nil
	}

	vctx := models.ViolationContext{
		SensorID:       reading.SensorID,
		SensorType:     reading.SensorType,
		SensorLocation: reading.SensorLocation,
		FarmID:         reading.FarmID,
		DeviceID:       reading.DeviceID,
	}

	matches := matcher.Match(*violation, vctx, rules)
	if len(matches) == 0 {
		// 未配置自动响应不是错误：只记录＋可选通知，不产生动作
		p.logger.Info("No actuator rules matched violation",
			zap.String("sensor_id", violation.SensorID),
			zap.String("violation_type", violation.ViolationType),
		)
		if p.notifier != nil {
			p.notifier.NotifyUnmatchedViolation(ctx, *violation, vctx)
		}
		return nil
	}

	// 每条命中规则独立产生一个动作，互相之间无顺序依赖
	var actions []*models.Action
	for _, match := range matches {
		action, err := p.dispatcher.Dispatch(ctx, match, vctx, *violation)
		if err != nil {
			p.logger.Error("Failed to dispatch action",
				zap.String("rule_id", match.Rule.RuleID),
				zap.String("command", match.Rule.Command),
				zap.Error(err),
			)
			// 继续处理其他命中规则，不中断
		}
		if action != nil {
			actions = append(actions, action)
		}
	}

	return actions
}
