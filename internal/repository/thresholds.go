package repository

import (
	"context"
	"database/sql"
	"fmt"

	"farmhub-actuation/internal/models"

	"go.uber.org/zap"
)

// ErrThresholdNotFound 阈值配置不存在
var ErrThresholdNotFound = fmt.Errorf("threshold spec not found")

// ThresholdRepository 阈值配置仓库（本服务只读）
type ThresholdRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewThresholdRepository 创建阈值配置仓库
func NewThresholdRepository(db *sql.DB, logger *zap.Logger) *ThresholdRepository {
	return &ThresholdRepository{
		db:     db,
		logger: logger,
	}
}

// GetThresholdSpec 获取传感器阈值配置
// 优先取按 sensor_id 配置的行，缺失时回退到按 sensor_type 配置的默认行
func (r *ThresholdRepository) GetThresholdSpec(ctx context.Context, sensorID, sensorType string) (*models.ThresholdSpec, error) {
	if sensorID == "" {
		return nil, fmt.Errorf("sensor_id is required")
	}

	query := `
		SELECT
			sensor_id,
			sensor_type,
			critical_low,
			critical_high,
			warning_low,
			warning_high
		FROM threshold_specs
		WHERE sensor_id = $1
	`

	spec, err := r.scanSpec(r.db.QueryRowContext(ctx, query, sensorID))
	if err == nil {
		return spec, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get threshold spec: %w", err)
	}

	// 回退：按类型的默认配置（sensor_id 为空的行）
	if sensorType == "" {
		return nil, fmt.Errorf("%w: sensor_id=%s", ErrThresholdNotFound, sensorID)
	}

	fallbackQuery := `
		SELECT
			sensor_id,
			sensor_type,
			critical_low,
			critical_high,
			warning_low,
			warning_high
		FROM threshold_specs
		WHERE sensor_id = '' AND sensor_type = $1
	`

	spec, err = r.scanSpec(r.db.QueryRowContext(ctx, fallbackQuery, sensorType))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: sensor_id=%s, sensor_type=%s", ErrThresholdNotFound, sensorID, sensorType)
		}
		return nil, fmt.Errorf("failed to get threshold spec by type: %w", err)
	}

	return spec, nil
}

func (r *ThresholdRepository) scanSpec(row rowScanner) (*models.ThresholdSpec, error) {
	var spec models.ThresholdSpec
	err := row.Scan(
		&spec.SensorID,
		&spec.SensorType,
		&spec.CriticalLow,
		&spec.CriticalHigh,
		&spec.WarningLow,
		&spec.WarningHigh,
	)
	if err != nil {
		return nil, err
	}
	return &spec, nil
}
