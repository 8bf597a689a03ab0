package evaluator

import (
	"testing"

	"farmhub-actuation/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 {
	return &v
}

func makeReading(value float64) models.SensorReading {
	return models.SensorReading{
		SensorID:  "sensor-1",
		DeviceID:  "device-1",
		Value:     value,
		Unit:      "C",
		Timestamp: 1700000000,
	}
}

func TestEvaluate_Classification(t *testing.T) {
	spec := models.ThresholdSpec{
		SensorID:     "sensor-1",
		CriticalLow:  5,
		CriticalHigh: 35,
		WarningLow:   floatPtr(10),
		WarningHigh:  floatPtr(30),
	}

	tests := []struct {
		name     string
		value    float64
		expected string // "" 表示在界内
	}{
		{"below critical low", 3, models.ViolationCriticalLow},
		{"below warning low", 8, models.ViolationWarningLow},
		{"within limits", 20, ""},
		{"above warning high", 32, models.ViolationWarningHigh},
		{"above critical high", 40, models.ViolationCriticalHigh},
		{"at critical low boundary", 5, ""},
		{"at critical high boundary", 35, ""},
		{"at warning low boundary", 10, ""},
		{"at warning high boundary", 30, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violation, err := Evaluate(makeReading(tt.value), spec)
			require.NoError(t, err)

			if tt.expected == "" {
				assert.Nil(t, violation)
			} else {
				require.NotNil(t, violation)
				assert.Equal(t, tt.expected, violation.ViolationType)
				assert.Equal(t, "sensor-1", violation.SensorID)
				assert.Equal(t, "device-1", violation.DeviceID)
				assert.Equal(t, tt.value, violation.Value)
			}
		})
	}
}

func TestEvaluate_MissingWarningBoundsFallBackToCritical(t *testing.T) {
	spec := models.ThresholdSpec{
		SensorID:     "sensor-1",
		CriticalLow:  5,
		CriticalHigh: 35,
	}

	// warning 缺省时只可能产生 critical 级别的越限
	violation, err := Evaluate(makeReading(8), spec)
	require.NoError(t, err)
	assert.Nil(t, violation)

	violation, err = Evaluate(makeReading(3), spec)
	require.NoError(t, err)
	require.NotNil(t, violation)
	assert.Equal(t, models.ViolationCriticalLow, violation.ViolationType)

	violation, err = Evaluate(makeReading(40), spec)
	require.NoError(t, err)
	require.NotNil(t, violation)
	assert.Equal(t, models.ViolationCriticalHigh, violation.ViolationType)
}

func TestEvaluate_WarningBoundsClampedIntoCriticalBand(t *testing.T) {
	// warning 边界越过 critical 边界时被夹回，critical 优先
	spec := models.ThresholdSpec{
		SensorID:     "sensor-1",
		CriticalLow:  5,
		CriticalHigh: 35,
		WarningLow:   floatPtr(2),  // 低于 critical_low，被夹为 5
		WarningHigh:  floatPtr(50), // 高于 critical_high，被夹为 35
	}

	violation, err := Evaluate(makeReading(3), spec)
	require.NoError(t, err)
	require.NotNil(t, violation)
	assert.Equal(t, models.ViolationCriticalLow, violation.ViolationType)

	violation, err = Evaluate(makeReading(40), spec)
	require.NoError(t, err)
	require.NotNil(t, violation)
	assert.Equal(t, models.ViolationCriticalHigh, violation.ViolationType)
}

func TestEvaluate_MalformedSpec(t *testing.T) {
	spec := models.ThresholdSpec{
		SensorID:     "sensor-1",
		CriticalLow:  40,
		CriticalHigh: 10,
	}

	violation, err := Evaluate(makeReading(20), spec)
	assert.ErrorIs(t, err, ErrInvalidThreshold)
	assert.Nil(t, violation)
}
