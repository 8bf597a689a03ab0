package supervisor

import (
	"context"
	"sync"
	"time"

	"farmhub-actuation/internal/models"

	"go.uber.org/zap"
)

// ActionStore 动作记录持久化（由 repository.ActionRepository 实现）
type ActionStore interface {
	UpdateAction(ctx context.Context, actionID string, updates map[string]interface{}) error
}

// Redispatcher 重试时复用调度器的发布步骤（同一 action_id，不新建记录）
type Redispatcher interface {
	Redispatch(ctx context.Context, action *models.Action) error
}

// EventSink 动作生命周期事件出口
type EventSink interface {
	PublishActionEvent(ctx context.Context, action *models.Action, event string)
}

// Supervisor 超时与重试监督器
// 持有全部在途动作（已 sent、尚未到达终态）。每个动作一把锁，
// 所有状态变更都是"先检查当前状态再迁移"：回执、设备错误、超时
// 竞争同一动作时只有先到者成功，其余为 no-op
type Supervisor struct {
	window     time.Duration
	store      ActionStore
	events     EventSink
	logger     *zap.Logger
	redispatch Redispatcher

	mu       sync.Mutex
	inflight map[string]*entry
}

type entry struct {
	mu     sync.Mutex
	action *models.Action
	timer  *time.Timer
}

// NewSupervisor 创建监督器
// events 可为 nil（不发布生命周期事件）
func NewSupervisor(window time.Duration, store ActionStore, events EventSink, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		window:   window,
		store:    store,
		events:   events,
		logger:   logger,
		inflight: make(map[string]*entry),
	}
}

// SetRedispatcher 注入重试用的调度器（构建期 dispatcher 依赖 supervisor，反向用接口解开）
func (s *Supervisor) SetRedispatcher(rd Redispatcher) {
	s.redispatch = rd
}

// Track 纳管一个已 sent 的动作并武装超时定时器
func (s *Supervisor) Track(action *models.Action) {
	e := &entry{action: action}

	s.mu.Lock()
	s.inflight[action.ActionID] = e
	s.mu.Unlock()

	e.mu.Lock()
	e.timer = time.AfterFunc(s.window, func() {
		s.onDeadline(action.ActionID)
	})
	e.mu.Unlock()

	s.logger.Debug("Tracking action",
		zap.String("action_id", action.ActionID),
		zap.Duration("window", s.window),
	)
}

// InflightCount 当前在途动作数
func (s *Supervisor) InflightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Resolve 处理设备回执：sent → ack 或 sent → error（终态，不重试）
// 未知/已终态的 action_id 静默丢弃（迟到或重复回执不得复活终态动作）
func (s *Supervisor) Resolve(ctx context.Context, actionID, result string, message string) {
	e := s.lookup(actionID)
	if e == nil {
		s.logger.Debug("Ack for unknown or completed action, discarding",
			zap.String("action_id", actionID),
			zap.String("result", result),
		)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.action.Status != models.ActionStatusSent {
		// 竞争失败方（超时已处理过），no-op
		return
	}

	now := time.Now()
	if result == models.AckResultOK {
		e.action.Status = models.ActionStatusAck
		e.action.AckAt = &now
		s.stopTimerLocked(e)
		s.remove(actionID)
		s.persist(ctx, e.action, map[string]interface{}{
			"status": models.ActionStatusAck,
			"ack_at": now,
		})
		s.emit(ctx, e.action, "ack")
		s.logger.Info("Action acknowledged",
			zap.String("action_id", actionID),
			zap.String("device_id", e.action.TargetDeviceID),
		)
		return
	}

	// 设备上报失败：终态 error，与超时语义不同，不走重试
	e.action.Status = models.ActionStatusError
	e.action.FailedAt = &now
	e.action.ErrorMessage = &message
	s.stopTimerLocked(e)
	s.remove(actionID)
	s.persist(ctx, e.action, map[string]interface{}{
		"status":        models.ActionStatusError,
		"failed_at":     now,
		"error_message": message,
	})
	s.emit(ctx, e.action, "error")
	s.logger.Warn("Action failed on device",
		zap.String("action_id", actionID),
		zap.String("device_id", e.action.TargetDeviceID),
		zap.String("error_message", message),
	)
}

// Shutdown 停止全部定时器（服务关停时调用，在途动作留给下次启动的对账处理）
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.inflight))
	for _, e := range s.inflight {
		entries = append(entries, e)
	}
	s.inflight = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		s.stopTimerLocked(e)
		e.mu.Unlock()
	}
}

// onDeadline 超时窗口到期
// 仍在 sent 且有剩余重试额度：retry_count+1，复用同一 action_id 重发并重新武装定时器；
// 额度耗尽：两步迁移 timeout → failed（timeout_at 与 failed_at 同一逻辑步内落库）
func (s *Supervisor) onDeadline(actionID string) {
	e := s.lookup(actionID)
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.action.Status != models.ActionStatusSent {
		// 回执先到，定时器竞争失败，no-op
		return
	}

	ctx := context.Background()
	now := time.Now()

	if e.action.RetryCount < e.action.MaxRetries {
		e.action.RetryCount++
		e.action.SentAt = &now

		if s.redispatch == nil {
			s.logger.Error("No redispatcher configured, failing action",
				zap.String("action_id", actionID),
			)
			s.finalizeFailedLocked(ctx, e, "no redispatcher configured")
			return
		}

		if err := s.redispatch.Redispatch(ctx, e.action); err != nil {
			// 重试期间发布失败与额度耗尽同等处理：终态 failed，不无限重试
			s.logger.Warn("Republish failed, finalizing action",
				zap.String("action_id", actionID),
				zap.Int("retry_count", e.action.RetryCount),
				zap.Error(err),
			)
			s.finalizeFailedLocked(ctx, e, "republish failed: "+err.Error())
			return
		}

		s.persist(ctx, e.action, map[string]interface{}{
			"retry_count": e.action.RetryCount,
			"sent_at":     now,
		})
		s.emit(ctx, e.action, "retry")

		e.timer = time.AfterFunc(s.window, func() {
			s.onDeadline(actionID)
		})

		s.logger.Info("Action re-dispatched after timeout",
			zap.String("action_id", actionID),
			zap.Int("retry_count", e.action.RetryCount),
			zap.Int("max_retries", e.action.MaxRetries),
		)
		return
	}

	// 额度耗尽：timeout → failed
	e.action.Status = models.ActionStatusTimeout
	e.action.TimeoutAt = &now
	e.action.Status = models.ActionStatusFailed
	e.action.FailedAt = &now
	s.remove(actionID)
	s.persist(ctx, e.action, map[string]interface{}{
		"status":     models.ActionStatusFailed,
		"timeout_at": now,
		"failed_at":  now,
	})
	s.emit(ctx, e.action, "failed")
	s.logger.Warn("Action timed out, no retries left",
		zap.String("action_id", actionID),
		zap.Int("retry_count", e.action.RetryCount),
	)
}

// finalizeFailedLocked 终态 failed（调用方持有 e.mu）
func (s *Supervisor) finalizeFailedLocked(ctx context.Context, e *entry, message string) {
	now := time.Now()
	e.action.Status = models.ActionStatusFailed
	e.action.FailedAt = &now
	e.action.ErrorMessage = &message
	s.stopTimerLocked(e)
	s.remove(e.action.ActionID)
	s.persist(ctx, e.action, map[string]interface{}{
		"status":        models.ActionStatusFailed,
		"failed_at":     now,
		"error_message": message,
	})
	s.emit(ctx, e.action, "failed")
}

// lookup 取在途动作；注意先释放全局锁再拿条目锁，避免锁序反转
func (s *Supervisor) lookup(actionID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[actionID]
}

func (s *Supervisor) remove(actionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, actionID)
}

func (s *Supervisor) stopTimerLocked(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (s *Supervisor) persist(ctx context.Context, action *models.Action, updates map[string]interface{}) {
	if err := s.store.UpdateAction(ctx, action.ActionID, updates); err != nil {
		// 持久化失败不回滚内存状态：内存状态机是事实源，落库失败只能记录
		s.logger.Error("Failed to persist action update",
			zap.String("action_id", action.ActionID),
			zap.String("status", action.Status),
			zap.Error(err),
		)
	}
}

func (s *Supervisor) emit(ctx context.Context, action *models.Action, event string) {
	if s.events != nil {
		s.events.PublishActionEvent(ctx, action, event)
	}
}
