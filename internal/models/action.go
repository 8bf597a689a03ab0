package models

import (
	"time"
)

// ActionStatus 动作状态机状态
const (
	ActionStatusQueued  = "queued"
	ActionStatusSent    = "sent"
	ActionStatusAck     = "ack"
	ActionStatusError   = "error"
	ActionStatusTimeout = "timeout"
	ActionStatusFailed  = "failed"
)

// TriggerSource 动作触发来源
const (
	TriggerSourceAuto   = "auto"
	TriggerSourceManual = "manual"
)

// ActionType 动作严重级别（决定 QoS/优先级）
const (
	ActionTypeCritical  = "critical"
	ActionTypeImportant = "important"
	ActionTypeNormal    = "normal"
)

// Action 执行器动作记录（对应 actions 表）
// 同一 action_id 全局唯一，重试复用同一条记录（retry_count 递增），不新建行
type Action struct {
	ActionID       string     `json:"action_id" db:"action_id"`
	DeviceID       string     `json:"device_id" db:"device_id"`
	TargetDeviceID string     `json:"target_device_id" db:"target_device_id"`
	Command        string     `json:"command" db:"command"`
	TriggerSource  string     `json:"trigger_source" db:"trigger_source"` // auto, manual
	ActionType     string     `json:"action_type" db:"action_type"`       // critical, important, normal
	QoSLevel       byte       `json:"qos_level" db:"qos_level"`
	RetainFlag     bool       `json:"retain_flag" db:"retain_flag"`
	Status         string     `json:"status" db:"status"` // queued, sent, ack, error, timeout, failed
	SentAt         *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	AckAt          *time.Time `json:"ack_at,omitempty" db:"ack_at"`
	TimeoutAt      *time.Time `json:"timeout_at,omitempty" db:"timeout_at"`
	FailedAt       *time.Time `json:"failed_at,omitempty" db:"failed_at"`
	RetryCount     int        `json:"retry_count" db:"retry_count"`
	MaxRetries     int        `json:"max_retries" db:"max_retries"`
	ErrorMessage   *string    `json:"error_message,omitempty" db:"error_message"`

	// 追溯字段（由触发源携带，可为空）
	SensorID      *string  `json:"sensor_id,omitempty" db:"sensor_id"`
	SensorType    *string  `json:"sensor_type,omitempty" db:"sensor_type"`
	Value         *float64 `json:"value,omitempty" db:"value"`
	Unit          *string  `json:"unit,omitempty" db:"unit"`
	ViolationType *string  `json:"violation_type,omitempty" db:"violation_type"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal 是否已到达终态（终态后所有状态变更都是 no-op）
func (a *Action) IsTerminal() bool {
	switch a.Status {
	case ActionStatusAck, ActionStatusError, ActionStatusFailed:
		return true
	}
	return false
}

// AckMessage 设备回执消息（actuator/{device_id}/status 载荷）
// action_id 是本服务与设备之间唯一的逐字节约定
type AckMessage struct {
	ActionID string `json:"action_id"`
	DeviceID string `json:"device_id"`
	Result   string `json:"result"` // ack, error
	Message  string `json:"message,omitempty"`
}

// AckResultOK / AckResultError 回执结果取值
const (
	AckResultOK    = "ack"
	AckResultError = "error"
)
