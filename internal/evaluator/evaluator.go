package evaluator

import (
	"fmt"

	"farmhub-actuation/internal/models"
)

// ErrInvalidThreshold 阈值配置非法（critical_low > critical_high）
// 该传感器在配置修正前不允许触发任何动作
var ErrInvalidThreshold = fmt.Errorf("invalid threshold spec: critical_low > critical_high")

// Evaluate 将读数按阈值配置分类，返回越限结果；在界内返回 nil
// 纯函数，无副作用。分类优先级：critical 先于 warning（同侧）
//   - value < critical_low  → critical_low
//   - value < warning_low   → warning_low
//   - value > critical_high → critical_high
//   - value > warning_high  → warning_high
func Evaluate(reading models.SensorReading, spec models.ThresholdSpec) (*models.ThresholdViolation, error) {
	if spec.CriticalLow > spec.CriticalHigh {
		return nil, ErrInvalidThreshold
	}

	// warning 边界缺省时回退为 critical 边界，并夹到 critical 区间内
	warningLow := spec.CriticalLow
	if spec.WarningLow != nil {
		warningLow = clamp(*spec.WarningLow, spec.CriticalLow, spec.CriticalHigh)
	}
	warningHigh := spec.CriticalHigh
	if spec.WarningHigh != nil {
		warningHigh = clamp(*spec.WarningHigh, spec.CriticalLow, spec.CriticalHigh)
	}

	var violationType string
	switch {
	case reading.Value < spec.CriticalLow:
		violationType = models.ViolationCriticalLow
	case reading.Value < warningLow:
		violationType = models.ViolationWarningLow
	case reading.Value > spec.CriticalHigh:
		violationType = models.ViolationCriticalHigh
	case reading.Value > warningHigh:
		violationType = models.ViolationWarningHigh
	default:
		return nil, nil
	}

	return &models.ThresholdViolation{
		SensorID:      reading.SensorID,
		DeviceID:      reading.DeviceID,
		Value:         reading.Value,
		Unit:          reading.Unit,
		ViolationType: violationType,
		Timestamp:     reading.Timestamp,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
