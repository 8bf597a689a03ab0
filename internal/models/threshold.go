package models

// ThresholdSpec 传感器阈值配置（对应 threshold_specs 表，本服务只读）
// 必须提供 critical 边界；warning 边界缺省时回退为 critical 边界，
// 且始终被夹到 [critical_low, critical_high] 区间内
type ThresholdSpec struct {
	SensorID     string   `json:"sensor_id" db:"sensor_id"`
	SensorType   string   `json:"sensor_type" db:"sensor_type"`
	CriticalLow  float64  `json:"critical_low" db:"critical_low"`
	CriticalHigh float64  `json:"critical_high" db:"critical_high"`
	WarningLow   *float64 `json:"warning_low,omitempty" db:"warning_low"`
	WarningHigh  *float64 `json:"warning_high,omitempty" db:"warning_high"`
}
