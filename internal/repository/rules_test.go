package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"farmhub-actuation/internal/models"
)

func ruleColumns() []string {
	return []string{
		"rule_id", "sensor_type", "sensor_location", "farm_id", "device_id",
		"violation_type", "command", "target_device_id", "action_type",
		"priority", "enabled", "description", "created_at", "updated_at",
	}
}

func TestGetEnabledRules(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRuleRepository(db, zap.NewNop())
	now := time.Now()

	rows := sqlmock.NewRows(ruleColumns()).
		AddRow("r-1", "temperature", nil, nil, nil,
			models.ViolationCriticalHigh, "turn_on", "fan-01", models.ActionTypeCritical,
			10, true, "greenhouse overheat", now, now).
		AddRow("r-2", nil, nil, "farm-3", nil,
			models.ViolationCriticalHigh, "sound_alarm", nil, models.ActionTypeImportant,
			5, true, "", now, now)

	mock.ExpectQuery("SELECT(.+)FROM actuator_rules").
		WithArgs(models.ViolationCriticalHigh).
		WillReturnRows(rows)

	rules, err := repo.GetEnabledRules(context.Background(), models.ViolationCriticalHigh)

	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "r-1", rules[0].RuleID)
	require.NotNil(t, rules[0].SensorType)
	assert.Equal(t, "temperature", *rules[0].SensorType)
	assert.Nil(t, rules[0].FarmID)
	require.NotNil(t, rules[0].TargetDeviceID)
	assert.Equal(t, "fan-01", *rules[0].TargetDeviceID)

	assert.Equal(t, "r-2", rules[1].RuleID)
	assert.Nil(t, rules[1].SensorType)
	require.NotNil(t, rules[1].FarmID)
	assert.Equal(t, "farm-3", *rules[1].FarmID)
	assert.Nil(t, rules[1].TargetDeviceID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEnabledRulesEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRuleRepository(db, zap.NewNop())

	mock.ExpectQuery("SELECT(.+)FROM actuator_rules").
		WithArgs(models.ViolationWarningLow).
		WillReturnRows(sqlmock.NewRows(ruleColumns()))

	rules, err := repo.GetEnabledRules(context.Background(), models.ViolationWarningLow)

	require.NoError(t, err)
	assert.Empty(t, rules)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEnabledRulesMissingType(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRuleRepository(db, zap.NewNop())

	_, err = repo.GetEnabledRules(context.Background(), "")
	assert.ErrorContains(t, err, "violation_type")
}
