package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"farmhub-actuation/internal/models"

	"go.uber.org/zap"
)

// ErrActionNotFound 动作不存在
var ErrActionNotFound = fmt.Errorf("action not found")

// ActionRepository 动作记录仓库（对应 actions 表）
type ActionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActionRepository 创建动作记录仓库
func NewActionRepository(db *sql.DB, logger *zap.Logger) *ActionRepository {
	return &ActionRepository{
		db:     db,
		logger: logger,
	}
}

// ActionFilters 动作查询过滤条件
type ActionFilters struct {
	DeviceID      *string
	SensorID      *string
	Status        *string
	Statuses      []string // IN 查询
	TriggerSource *string
	StartTime     *time.Time // created_at >= StartTime
	EndTime       *time.Time // created_at <= EndTime
}

const actionColumns = `
	action_id,
	device_id,
	target_device_id,
	command,
	trigger_source,
	action_type,
	qos_level,
	retain_flag,
	status,
	sent_at,
	ack_at,
	timeout_at,
	failed_at,
	retry_count,
	max_retries,
	error_message,
	sensor_id,
	sensor_type,
	value,
	unit,
	violation_type,
	created_at,
	updated_at
`

// CreateAction 创建动作记录
func (r *ActionRepository) CreateAction(ctx context.Context, action *models.Action) error {
	if action == nil {
		return fmt.Errorf("action is required")
	}
	if action.ActionID == "" {
		return fmt.Errorf("action_id is required")
	}

	query := `
		INSERT INTO actions (` + actionColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		action.ActionID,
		action.DeviceID,
		action.TargetDeviceID,
		action.Command,
		action.TriggerSource,
		action.ActionType,
		action.QoSLevel,
		action.RetainFlag,
		action.Status,
		action.SentAt,
		action.AckAt,
		action.TimeoutAt,
		action.FailedAt,
		action.RetryCount,
		action.MaxRetries,
		action.ErrorMessage,
		action.SensorID,
		action.SensorType,
		action.Value,
		action.Unit,
		action.ViolationType,
		action.CreatedAt,
		action.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create action: %w", err)
	}

	return nil
}

// GetAction 根据 action_id 获取动作记录
func (r *ActionRepository) GetAction(ctx context.Context, actionID string) (*models.Action, error) {
	if actionID == "" {
		return nil, fmt.Errorf("action_id is required")
	}

	query := `SELECT ` + actionColumns + ` FROM actions WHERE action_id = $1`

	action, err := r.scanAction(r.db.QueryRowContext(ctx, query, actionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: action_id=%s", ErrActionNotFound, actionID)
		}
		return nil, fmt.Errorf("failed to get action: %w", err)
	}

	return action, nil
}

// UpdateAction 部分更新动作记录（只允许生命周期字段）
func (r *ActionRepository) UpdateAction(ctx context.Context, actionID string, updates map[string]interface{}) error {
	if actionID == "" {
		return fmt.Errorf("action_id is required")
	}
	if len(updates) == 0 {
		return fmt.Errorf("updates cannot be empty")
	}

	// 允许更新的字段
	allowedFields := map[string]bool{
		"status":        true,
		"sent_at":       true,
		"ack_at":        true,
		"timeout_at":    true,
		"failed_at":     true,
		"retry_count":   true,
		"error_message": true,
	}

	setParts := []string{}
	args := []interface{}{}
	argN := 1

	for field, value := range updates {
		if !allowedFields[field] {
			return fmt.Errorf("field '%s' is not allowed to update", field)
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", field, argN))
		args = append(args, value)
		argN++
	}

	// 自动更新 updated_at
	setParts = append(setParts, "updated_at = CURRENT_TIMESTAMP")

	args = append(args, actionID)
	query := fmt.Sprintf(`
		UPDATE actions
		SET %s
		WHERE action_id = $%d
	`, strings.Join(setParts, ", "), argN)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update action: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: action_id=%s", ErrActionNotFound, actionID)
	}

	return nil
}

// ListActions 分页查询动作记录，返回 (items, total)
func (r *ActionRepository) ListActions(ctx context.Context, filters ActionFilters, page, size int) ([]*models.Action, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	args := []interface{}{}
	argN := 1
	where := buildActionWhereClause(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	// 计算总数
	queryCount := fmt.Sprintf(`SELECT COUNT(*) FROM actions %s`, whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count actions: %w", err)
	}

	// 查询当前页
	query := fmt.Sprintf(`
		SELECT %s
		FROM actions
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, actionColumns, whereClause, argN, argN+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.Action
	for rows.Next() {
		action, err := r.scanAction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate actions: %w", err)
	}

	return actions, total, nil
}

func buildActionWhereClause(filters ActionFilters, args *[]interface{}, argN *int) []string {
	where := []string{}

	if filters.DeviceID != nil {
		where = append(where, fmt.Sprintf("(device_id = $%d OR target_device_id = $%d)", *argN, *argN))
		*args = append(*args, *filters.DeviceID)
		*argN++
	}
	if filters.SensorID != nil {
		where = append(where, fmt.Sprintf("sensor_id = $%d", *argN))
		*args = append(*args, *filters.SensorID)
		*argN++
	}
	if filters.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", *argN))
		*args = append(*args, *filters.Status)
		*argN++
	}
	if len(filters.Statuses) > 0 {
		placeholders := []string{}
		for _, status := range filters.Statuses {
			placeholders = append(placeholders, fmt.Sprintf("$%d", *argN))
			*args = append(*args, status)
			*argN++
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filters.TriggerSource != nil {
		where = append(where, fmt.Sprintf("trigger_source = $%d", *argN))
		*args = append(*args, *filters.TriggerSource)
		*argN++
	}
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}

	return where
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ActionRepository) scanAction(row rowScanner) (*models.Action, error) {
	var action models.Action
	var qosLevel int

	err := row.Scan(
		&action.ActionID,
		&action.DeviceID,
		&action.TargetDeviceID,
		&action.Command,
		&action.TriggerSource,
		&action.ActionType,
		&qosLevel,
		&action.RetainFlag,
		&action.Status,
		&action.SentAt,
		&action.AckAt,
		&action.TimeoutAt,
		&action.FailedAt,
		&action.RetryCount,
		&action.MaxRetries,
		&action.ErrorMessage,
		&action.SensorID,
		&action.SensorType,
		&action.Value,
		&action.Unit,
		&action.ViolationType,
		&action.CreatedAt,
		&action.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	action.QoSLevel = byte(qosLevel)
	return &action, nil
}
