package models

// SensorReading 传感器读数（不可变事实，由遥测链路经 MQTT 送入）
type SensorReading struct {
	SensorID       string  `json:"sensor_id"`
	DeviceID       string  `json:"device_id"`
	FarmID         string  `json:"farm_id,omitempty"`
	SensorType     string  `json:"sensor_type,omitempty"`     // temperature, humidity, soil_moisture...
	SensorLocation string  `json:"sensor_location,omitempty"` // greenhouse-1, field-2...
	Value          float64 `json:"value"`
	Unit           string  `json:"unit,omitempty"`
	Timestamp      int64   `json:"timestamp"` // Unix 秒
}

// ViolationType 越限类别（固定集合）
const (
	ViolationCriticalLow  = "critical_low"
	ViolationWarningLow   = "warning_low"
	ViolationWarningHigh  = "warning_high"
	ViolationCriticalHigh = "critical_high"
)

// ThresholdViolation 越限判定结果（瞬态值对象，不直接落库）
type ThresholdViolation struct {
	SensorID      string  `json:"sensor_id"`
	DeviceID      string  `json:"device_id"`
	Value         float64 `json:"value"`
	Unit          string  `json:"unit,omitempty"`
	ViolationType string  `json:"violation_type"` // critical_low, warning_low, warning_high, critical_high
	Timestamp     int64   `json:"timestamp"`
}

// ViolationContext 规则匹配上下文（取自触发读数）
type ViolationContext struct {
	SensorID       string `json:"sensor_id"`
	SensorType     string `json:"sensor_type"`
	SensorLocation string `json:"sensor_location"`
	FarmID         string `json:"farm_id"`
	DeviceID       string `json:"device_id"`
}
