package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"farmhub-actuation/internal/config"
	"farmhub-actuation/internal/matcher"
	"farmhub-actuation/internal/models"
	"farmhub-actuation/internal/supervisor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher 命令出口（由 mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// ActionStore 动作记录持久化（由 repository.ActionRepository 实现）
type ActionStore interface {
	CreateAction(ctx context.Context, action *models.Action) error
	UpdateAction(ctx context.Context, actionID string, updates map[string]interface{}) error
	GetAction(ctx context.Context, actionID string) (*models.Action, error)
}

// EventSink 动作生命周期事件出口
type EventSink interface {
	PublishActionEvent(ctx context.Context, action *models.Action, event string)
}

// ManualActionRequest 手动执行请求（来自 UI/API，绕过规则匹配）
type ManualActionRequest struct {
	DeviceID   string `json:"device_id"`
	Command    string `json:"command"`
	ActionID   string `json:"action_id,omitempty"`   // 可选：幂等重提交用
	ActionType string `json:"action_type,omitempty"` // 默认 normal
}

// Dispatcher 动作调度器
// 每次调用恰好发出一条命令消息；重试路径复用同一发布步骤、同一 action_id
type Dispatcher struct {
	cfg        *config.Config
	store      ActionStore
	publisher  Publisher
	supervisor *supervisor.Supervisor
	events     EventSink
	logger     *zap.Logger
}

// NewDispatcher 创建调度器
// events 可为 nil
func NewDispatcher(
	cfg *config.Config,
	store ActionStore,
	publisher Publisher,
	sup *supervisor.Supervisor,
	events EventSink,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		store:      store,
		publisher:  publisher,
		supervisor: sup,
		events:     events,
		logger:     logger,
	}
}

// Dispatch 由规则命中触发的自动调度
func (d *Dispatcher) Dispatch(ctx context.Context, match matcher.RuleMatch, vctx models.ViolationContext, violation models.ThresholdViolation) (*models.Action, error) {
	actionType := match.Rule.ActionType
	if actionType == "" {
		actionType = models.ActionTypeNormal
	}

	action := d.buildAction(uuid.New().String(), vctx.DeviceID, match.TargetDeviceID,
		match.Rule.Command, models.TriggerSourceAuto, actionType)

	// 追溯字段
	action.SensorID = &violation.SensorID
	if vctx.SensorType != "" {
		sensorType := vctx.SensorType
		action.SensorType = &sensorType
	}
	value := violation.Value
	action.Value = &value
	if violation.Unit != "" {
		unit := violation.Unit
		action.Unit = &unit
	}
	violationType := violation.ViolationType
	action.ViolationType = &violationType

	return d.send(ctx, action)
}

// DispatchManual 手动执行入口：不经规则匹配，走同一套 发布/超时/重试 状态机
// 带已存在 action_id 的重复提交幂等返回原记录，不重复发布
func (d *Dispatcher) DispatchManual(ctx context.Context, req ManualActionRequest) (*models.Action, error) {
	if req.DeviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	if req.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	actionType := req.ActionType
	if actionType == "" {
		actionType = models.ActionTypeNormal
	}
	if _, ok := d.cfg.Dispatch.Delivery[actionType]; !ok {
		return nil, fmt.Errorf("unknown action_type: %s", actionType)
	}

	actionID := req.ActionID
	if actionID == "" {
		actionID = uuid.New().String()
	} else {
		existing, err := d.store.GetAction(ctx, actionID)
		if err == nil && existing != nil {
			d.logger.Info("Manual action resubmitted, returning existing record",
				zap.String("action_id", actionID),
				zap.String("status", existing.Status),
			)
			return existing, nil
		}
	}

	action := d.buildAction(actionID, req.DeviceID, req.DeviceID,
		req.Command, models.TriggerSourceManual, actionType)

	return d.send(ctx, action)
}

// Redispatch 重试发布（supervisor 超时路径调用）：只重发命令消息，不新建记录
func (d *Dispatcher) Redispatch(ctx context.Context, action *models.Action) error {
	return d.publish(action)
}

// buildAction 构建初始动作记录（queued）
func (d *Dispatcher) buildAction(actionID, deviceID, targetDeviceID, command, triggerSource, actionType string) *models.Action {
	delivery := d.cfg.Dispatch.Delivery[actionType]
	now := time.Now()

	return &models.Action{
		ActionID:       actionID,
		DeviceID:       deviceID,
		TargetDeviceID: targetDeviceID,
		Command:        command,
		TriggerSource:  triggerSource,
		ActionType:     actionType,
		QoSLevel:       delivery.QoS,
		RetainFlag:     delivery.Retain,
		Status:         models.ActionStatusQueued,
		MaxRetries:     d.cfg.Dispatch.MaxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// send 持久化 queued → 发布 → sent，成功后交给 supervisor 武装超时
// 同步发布失败：终态 error，本层不自动重提交
func (d *Dispatcher) send(ctx context.Context, action *models.Action) (*models.Action, error) {
	if err := d.store.CreateAction(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to persist action: %w", err)
	}

	if err := d.publish(action); err != nil {
		now := time.Now()
		errMsg := err.Error()
		action.Status = models.ActionStatusError
		action.FailedAt = &now
		action.ErrorMessage = &errMsg

		if updateErr := d.store.UpdateAction(ctx, action.ActionID, map[string]interface{}{
			"status":        models.ActionStatusError,
			"failed_at":     now,
			"error_message": errMsg,
		}); updateErr != nil {
			d.logger.Error("Failed to mark action as error",
				zap.String("action_id", action.ActionID),
				zap.Error(updateErr),
			)
		}
		d.emit(ctx, action, "error")

		d.logger.Error("Publish failed, action marked error",
			zap.String("action_id", action.ActionID),
			zap.String("target_device_id", action.TargetDeviceID),
			zap.Error(err),
		)
		return action, fmt.Errorf("failed to publish command: %w", err)
	}

	now := time.Now()
	action.Status = models.ActionStatusSent
	action.SentAt = &now
	if err := d.store.UpdateAction(ctx, action.ActionID, map[string]interface{}{
		"status":  models.ActionStatusSent,
		"sent_at": now,
	}); err != nil {
		d.logger.Error("Failed to mark action as sent",
			zap.String("action_id", action.ActionID),
			zap.Error(err),
		)
	}

	d.supervisor.Track(action)
	d.emit(ctx, action, "sent")

	d.logger.Info("Action dispatched",
		zap.String("action_id", action.ActionID),
		zap.String("target_device_id", action.TargetDeviceID),
		zap.String("command", action.Command),
		zap.String("trigger_source", action.TriggerSource),
		zap.Uint8("qos", action.QoSLevel),
	)

	return action, nil
}

func (d *Dispatcher) publish(action *models.Action) error {
	msg := models.CommandMessage{
		ActionID:   action.ActionID,
		DeviceID:   action.TargetDeviceID,
		Command:    action.Command,
		ActionType: action.ActionType,
		RetryCount: action.RetryCount,
		Timestamp:  time.Now().Unix(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	topic := fmt.Sprintf(d.cfg.Topics.CommandFormat, action.TargetDeviceID)
	return d.publisher.Publish(topic, action.QoSLevel, action.RetainFlag, payload)
}

func (d *Dispatcher) emit(ctx context.Context, action *models.Action, event string) {
	if d.events != nil {
		d.events.PublishActionEvent(ctx, action, event)
	}
}
