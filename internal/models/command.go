package models

// CommandMessage 下发到执行器的命令载荷（actuator/{target_device_id}/command）
// 设备回执时必须原样带回 action_id
type CommandMessage struct {
	ActionID   string `json:"action_id"`
	DeviceID   string `json:"device_id"` // 目标设备
	Command    string `json:"command"`
	ActionType string `json:"action_type"`
	RetryCount int    `json:"retry_count"`
	Timestamp  int64  `json:"timestamp"`
}
