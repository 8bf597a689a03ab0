package repository

import (
	"context"
	"database/sql"
	"fmt"

	"farmhub-actuation/internal/models"

	"go.uber.org/zap"
)

// RuleRepository 执行器规则仓库（评估期只读）
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository 创建规则仓库
func NewRuleRepository(db *sql.DB, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// GetEnabledRules 获取指定越限类型的全部启用规则
// 通配匹配在 matcher 中进行，这里只按类型预过滤
// 按创建时间排序保证同优先级规则的稳定顺序
func (r *RuleRepository) GetEnabledRules(ctx context.Context, violationType string) ([]models.ActuatorRule, error) {
	if violationType == "" {
		return nil, fmt.Errorf("violation_type is required")
	}

	query := `
		SELECT
			rule_id,
			sensor_type,
			sensor_location,
			farm_id,
			device_id,
			violation_type,
			command,
			target_device_id,
			action_type,
			priority,
			enabled,
			description,
			created_at,
			updated_at
		FROM actuator_rules
		WHERE violation_type = $1
		  AND enabled = true
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, violationType)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []models.ActuatorRule
	for rows.Next() {
		var rule models.ActuatorRule
		err := rows.Scan(
			&rule.RuleID,
			&rule.SensorType,
			&rule.SensorLocation,
			&rule.FarmID,
			&rule.DeviceID,
			&rule.ViolationType,
			&rule.Command,
			&rule.TargetDeviceID,
			&rule.ActionType,
			&rule.Priority,
			&rule.Enabled,
			&rule.Description,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return rules, nil
}
