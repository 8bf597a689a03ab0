package matcher

import (
	"sort"

	"farmhub-actuation/internal/models"
)

// RuleMatch 命中的规则及解析后的目标设备
type RuleMatch struct {
	Rule           models.ActuatorRule
	TargetDeviceID string
}

// Match 在已启用规则中选出命中给定越限的全部规则
// 每个匹配字段：nil 通配，非 nil 必须与上下文相等；violation_type 必须一致。
// 全部命中规则都会返回（多动作响应），按 priority 降序、同序保持输入顺序。
// 返回空列表不是错误，表示未配置自动响应
func Match(violation models.ThresholdViolation, ctx models.ViolationContext, rules []models.ActuatorRule) []RuleMatch {
	var matches []RuleMatch

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if rule.ViolationType != violation.ViolationType {
			continue
		}
		if !fieldMatches(rule.SensorType, ctx.SensorType) {
			continue
		}
		if !fieldMatches(rule.SensorLocation, ctx.SensorLocation) {
			continue
		}
		if !fieldMatches(rule.FarmID, ctx.FarmID) {
			continue
		}
		if !fieldMatches(rule.DeviceID, ctx.DeviceID) {
			continue
		}

		// 目标设备：规则指定优先，否则回退到触发读数所属设备
		targetDeviceID := ctx.DeviceID
		if rule.TargetDeviceID != nil && *rule.TargetDeviceID != "" {
			targetDeviceID = *rule.TargetDeviceID
		}

		matches = append(matches, RuleMatch{
			Rule:           rule,
			TargetDeviceID: targetDeviceID,
		})
	}

	// priority 降序；SliceStable 保证同优先级按规则创建顺序
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Rule.Priority > matches[j].Rule.Priority
	})

	return matches
}

func fieldMatches(matcher *string, value string) bool {
	if matcher == nil || *matcher == "" {
		return true
	}
	return *matcher == value
}
