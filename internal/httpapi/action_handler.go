package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"farmhub-actuation/internal/dispatcher"
	"farmhub-actuation/internal/models"
	"farmhub-actuation/internal/repository"
)

// ManualDispatcher 手动执行入口（绕过规则匹配，直接调度）
type ManualDispatcher interface {
	DispatchManual(ctx context.Context, req dispatcher.ManualActionRequest) (*models.Action, error)
}

// ActionReader 动作查询入口
type ActionReader interface {
	GetAction(ctx context.Context, actionID string) (*models.Action, error)
	ListActions(ctx context.Context, filters repository.ActionFilters, page, size int) ([]*models.Action, int, error)
}

// ActionHandler 动作 HTTP 处理器
type ActionHandler struct {
	dispatcher ManualDispatcher
	reader     ActionReader
	logger     *zap.Logger
}

func NewActionHandler(d ManualDispatcher, r ActionReader, logger *zap.Logger) *ActionHandler {
	return &ActionHandler{dispatcher: d, reader: r, logger: logger}
}

// ManualAction POST /core/api/v1/actions/manual
// 请求体: {device_id, command, action_id?, action_type?}
func (h *ActionHandler) ManualAction(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.ManualActionRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	action, err := h.dispatcher.DispatchManual(r.Context(), req)
	if err != nil {
		if action == nil {
			// 校验失败（缺少字段、非法 action_type 等）
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
			return
		}
		// 动作已落库但发布失败：返回记录，让调用方看到 error 状态
		h.logger.Warn("manual action publish failed",
			zap.String("actionId", action.ActionID),
			zap.Error(err))
		writeJSON(w, http.StatusOK, Ok(action))
		return
	}

	writeJSON(w, http.StatusOK, Ok(action))
}

// GetAction GET /core/api/v1/actions/{id}
func (h *ActionHandler) GetAction(w http.ResponseWriter, r *http.Request, actionID string) {
	action, err := h.reader.GetAction(r.Context(), actionID)
	if err != nil {
		if errors.Is(err, repository.ErrActionNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("action not found"))
			return
		}
		h.logger.Error("get action failed", zap.String("actionId", actionID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(action))
}

// ActionListResult 分页查询结果
type ActionListResult struct {
	Items []*models.Action `json:"items"`
	Total int              `json:"total"`
}

// ListActions GET /core/api/v1/actions
// 查询参数: device_id, sensor_id, status（逗号分隔支持多值）, trigger_source,
// start_time/end_time（RFC3339）, page, page_size（上限 100）
func (h *ActionHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	filters, err := parseActionFilters(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	page := parseInt(r.URL.Query().Get("page"), 1)
	if page < 1 {
		page = 1
	}
	size := parseInt(r.URL.Query().Get("page_size"), 20)
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	items, total, err := h.reader.ListActions(r.Context(), filters, page, size)
	if err != nil {
		h.logger.Error("list actions failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return
	}
	if items == nil {
		items = []*models.Action{}
	}

	writeJSON(w, http.StatusOK, Ok(ActionListResult{Items: items, Total: total}))
}

// ExportActions GET /core/api/v1/actions/export
// 按当前过滤条件导出 Excel（最多 1000 条）
func (h *ActionHandler) ExportActions(w http.ResponseWriter, r *http.Request) {
	filters, err := parseActionFilters(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	items, _, err := h.reader.ListActions(r.Context(), filters, 1, 1000)
	if err != nil {
		h.logger.Error("export actions failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return
	}

	data, err := GenerateActionExport(items)
	if err != nil {
		h.logger.Error("generate action export failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return
	}

	filename := fmt.Sprintf("actions_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, _ = w.Write(data)
}

func parseActionFilters(r *http.Request) (repository.ActionFilters, error) {
	q := r.URL.Query()
	var filters repository.ActionFilters

	if v := strings.TrimSpace(q.Get("device_id")); v != "" {
		filters.DeviceID = &v
	}
	if v := strings.TrimSpace(q.Get("sensor_id")); v != "" {
		filters.SensorID = &v
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		parts := strings.Split(v, ",")
		if len(parts) == 1 {
			filters.Status = &parts[0]
		} else {
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			filters.Statuses = parts
		}
	}
	if v := strings.TrimSpace(q.Get("trigger_source")); v != "" {
		filters.TriggerSource = &v
	}
	if v := strings.TrimSpace(q.Get("start_time")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filters, fmt.Errorf("invalid start_time: %s", v)
		}
		filters.StartTime = &t
	}
	if v := strings.TrimSpace(q.Get("end_time")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filters, fmt.Errorf("invalid end_time: %s", v)
		}
		filters.EndTime = &t
	}

	return filters, nil
}
