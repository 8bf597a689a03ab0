package models

import (
	"time"
)

// ActuatorRule 执行器规则（对应 actuator_rules 表，评估期只读）
// 匹配字段为 nil 表示通配；全部为 nil 的规则是该越限类型的全局默认规则。
// 同一越限可能命中多条启用规则，每条独立产生一个动作（多动作响应）
type ActuatorRule struct {
	RuleID         string  `json:"rule_id" db:"rule_id"`
	SensorType     *string `json:"sensor_type,omitempty" db:"sensor_type"`
	SensorLocation *string `json:"sensor_location,omitempty" db:"sensor_location"`
	FarmID         *string `json:"farm_id,omitempty" db:"farm_id"`
	DeviceID       *string `json:"device_id,omitempty" db:"device_id"`
	ViolationType  string  `json:"violation_type" db:"violation_type"`
	Command        string  `json:"command" db:"command"`
	TargetDeviceID *string `json:"target_device_id,omitempty" db:"target_device_id"`
	ActionType     string  `json:"action_type" db:"action_type"` // critical, important, normal
	Priority       int     `json:"priority" db:"priority"`
	Enabled        bool    `json:"enabled" db:"enabled"` // false = 软删除
	Description    string  `json:"description" db:"description"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
