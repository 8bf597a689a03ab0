package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"farmhub-actuation/internal/dispatcher"
	"farmhub-actuation/internal/models"
	"farmhub-actuation/internal/repository"
)

// fakeDispatcher 手动执行桩
type fakeDispatcher struct {
	lastReq dispatcher.ManualActionRequest
	action  *models.Action
	err     error
}

func (f *fakeDispatcher) DispatchManual(ctx context.Context, req dispatcher.ManualActionRequest) (*models.Action, error) {
	f.lastReq = req
	return f.action, f.err
}

// fakeReader 动作查询桩
type fakeReader struct {
	actions     map[string]*models.Action
	listItems   []*models.Action
	listTotal   int
	lastFilters repository.ActionFilters
	lastPage    int
	lastSize    int
}

func (f *fakeReader) GetAction(ctx context.Context, actionID string) (*models.Action, error) {
	a, ok := f.actions[actionID]
	if !ok {
		return nil, repository.ErrActionNotFound
	}
	return a, nil
}

func (f *fakeReader) ListActions(ctx context.Context, filters repository.ActionFilters, page, size int) ([]*models.Action, int, error) {
	f.lastFilters = filters
	f.lastPage = page
	f.lastSize = size
	return f.listItems, f.listTotal, nil
}

func newTestRouter(d ManualDispatcher, r ActionReader) *Router {
	router := NewRouter(zap.NewNop())
	router.RegisterActionRoutes(NewActionHandler(d, r, zap.NewNop()))
	return router
}

func sampleAction(id, status string) *models.Action {
	now := time.Now()
	return &models.Action{
		ActionID:       id,
		DeviceID:       "pump-01",
		TargetDeviceID: "pump-01",
		Command:        "turn_on",
		TriggerSource:  models.TriggerSourceManual,
		ActionType:     models.ActionTypeNormal,
		Status:         status,
		MaxRetries:     1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestManualAction(t *testing.T) {
	d := &fakeDispatcher{action: sampleAction("a-1", models.ActionStatusSent)}
	router := newTestRouter(d, &fakeReader{})

	body := bytes.NewBufferString(`{"device_id":"pump-01","command":"turn_on"}`)
	req := httptest.NewRequest(http.MethodPost, "/core/api/v1/actions/manual", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp Result[*models.Action]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultSuccess, resp.Code)
	assert.Equal(t, "a-1", resp.Result.ActionID)
	assert.Equal(t, "pump-01", d.lastReq.DeviceID)
	assert.Equal(t, "turn_on", d.lastReq.Command)
}

func TestManualActionValidationError(t *testing.T) {
	d := &fakeDispatcher{err: assert.AnError}
	router := newTestRouter(d, &fakeReader{})

	body := bytes.NewBufferString(`{"command":"turn_on"}`)
	req := httptest.NewRequest(http.MethodPost, "/core/api/v1/actions/manual", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp Result[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultError, resp.Code)
}

func TestManualActionPublishFailureReturnsRecord(t *testing.T) {
	// 发布失败但动作已落库（error 状态）：仍返回 200 让调用方看到记录
	d := &fakeDispatcher{action: sampleAction("a-2", models.ActionStatusError), err: assert.AnError}
	router := newTestRouter(d, &fakeReader{})

	body := bytes.NewBufferString(`{"device_id":"pump-01","command":"turn_on"}`)
	req := httptest.NewRequest(http.MethodPost, "/core/api/v1/actions/manual", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp Result[*models.Action]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ActionStatusError, resp.Result.Status)
}

func TestManualActionMethodNotAllowed(t *testing.T) {
	router := newTestRouter(&fakeDispatcher{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodGet, "/core/api/v1/actions/manual", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGetAction(t *testing.T) {
	r := &fakeReader{actions: map[string]*models.Action{
		"a-1": sampleAction("a-1", models.ActionStatusAck),
	}}
	router := newTestRouter(&fakeDispatcher{}, r)

	req := httptest.NewRequest(http.MethodGet, "/core/api/v1/actions/a-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp Result[*models.Action]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ActionStatusAck, resp.Result.Status)
}

func TestGetActionNotFound(t *testing.T) {
	router := newTestRouter(&fakeDispatcher{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodGet, "/core/api/v1/actions/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListActions(t *testing.T) {
	r := &fakeReader{
		listItems: []*models.Action{sampleAction("a-1", models.ActionStatusAck)},
		listTotal: 42,
	}
	router := newTestRouter(&fakeDispatcher{}, r)

	req := httptest.NewRequest(http.MethodGet,
		"/core/api/v1/actions?device_id=pump-01&status=ack,failed&page=2&page_size=500", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp Result[ActionListResult]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 42, resp.Result.Total)
	assert.Len(t, resp.Result.Items, 1)

	// 过滤条件与分页上限
	require.NotNil(t, r.lastFilters.DeviceID)
	assert.Equal(t, "pump-01", *r.lastFilters.DeviceID)
	assert.Equal(t, []string{"ack", "failed"}, r.lastFilters.Statuses)
	assert.Equal(t, 2, r.lastPage)
	assert.Equal(t, 100, r.lastSize)
}

func TestListActionsInvalidTime(t *testing.T) {
	router := newTestRouter(&fakeDispatcher{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodGet, "/core/api/v1/actions?start_time=notatime", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportActions(t *testing.T) {
	r := &fakeReader{
		listItems: []*models.Action{sampleAction("a-1", models.ActionStatusFailed)},
		listTotal: 1,
	}
	router := newTestRouter(&fakeDispatcher{}, r)

	req := httptest.NewRequest(http.MethodGet, "/core/api/v1/actions/export?status=failed", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())
}

