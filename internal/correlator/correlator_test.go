package correlator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"farmhub-actuation/internal/models"
	"farmhub-actuation/internal/supervisor"
)

// fakeSubscriber 订阅桩
type fakeSubscriber struct {
	subscribed   []string
	unsubscribed []string
	handler      func(topic string, payload []byte) error
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	f.subscribed = append(f.subscribed, topic)
	f.handler = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

// fakeStore 动作持久化桩
type fakeStore struct {
	mu      sync.Mutex
	updates []map[string]interface{}
}

func (f *fakeStore) UpdateAction(ctx context.Context, actionID string, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updates)
	return nil
}

func trackedAction(sup *supervisor.Supervisor, id string) *models.Action {
	now := time.Now()
	action := &models.Action{
		ActionID:       id,
		DeviceID:       "dev-1",
		TargetDeviceID: "fan-01",
		Command:        "turn_on",
		Status:         models.ActionStatusSent,
		SentAt:         &now,
		MaxRetries:     1,
	}
	sup.Track(action)
	return action
}

func TestStartSubscribesStatusTopic(t *testing.T) {
	sub := &fakeSubscriber{}
	sup := supervisor.NewSupervisor(time.Minute, &fakeStore{}, nil, zap.NewNop())
	defer sup.Shutdown()

	c := NewCorrelator("actuator/+/status", sub, sup, zap.NewNop())
	require.NoError(t, c.Start())
	assert.Equal(t, []string{"actuator/+/status"}, sub.subscribed)

	c.Stop()
	assert.Equal(t, []string{"actuator/+/status"}, sub.unsubscribed)
}

func TestHandleMessageAck(t *testing.T) {
	sup := supervisor.NewSupervisor(time.Minute, &fakeStore{}, nil, zap.NewNop())
	defer sup.Shutdown()
	action := trackedAction(sup, "a-1")

	c := NewCorrelator("actuator/+/status", &fakeSubscriber{}, sup, zap.NewNop())

	payload := []byte(`{"action_id":"a-1","device_id":"fan-01","result":"ack"}`)
	require.NoError(t, c.HandleMessage("actuator/fan-01/status", payload))

	assert.Equal(t, models.ActionStatusAck, action.Status)
	assert.Equal(t, 0, sup.InflightCount())
}

func TestHandleMessageDeviceError(t *testing.T) {
	sup := supervisor.NewSupervisor(time.Minute, &fakeStore{}, nil, zap.NewNop())
	defer sup.Shutdown()
	action := trackedAction(sup, "a-1")

	c := NewCorrelator("actuator/+/status", &fakeSubscriber{}, sup, zap.NewNop())

	payload := []byte(`{"action_id":"a-1","device_id":"fan-01","result":"error","message":"relay jammed"}`)
	require.NoError(t, c.HandleMessage("actuator/fan-01/status", payload))

	assert.Equal(t, models.ActionStatusError, action.Status)
	require.NotNil(t, action.ErrorMessage)
	assert.Equal(t, "relay jammed", *action.ErrorMessage)
}

func TestHandleMessageMalformed(t *testing.T) {
	sup := supervisor.NewSupervisor(time.Minute, &fakeStore{}, nil, zap.NewNop())
	defer sup.Shutdown()

	c := NewCorrelator("actuator/+/status", &fakeSubscriber{}, sup, zap.NewNop())

	assert.Error(t, c.HandleMessage("actuator/fan-01/status", []byte(`not json`)))
	assert.Error(t, c.HandleMessage("actuator/fan-01/status", []byte(`{"result":"ack"}`)))
	assert.Error(t, c.HandleMessage("actuator/fan-01/status", []byte(`{"action_id":"a-1","result":"maybe"}`)))
}

func TestHandleMessageUnknownActionDiscarded(t *testing.T) {
	store := &fakeStore{}
	sup := supervisor.NewSupervisor(time.Minute, store, nil, zap.NewNop())
	defer sup.Shutdown()

	c := NewCorrelator("actuator/+/status", &fakeSubscriber{}, sup, zap.NewNop())

	// 未知 action_id 静默丢弃，不落库
	payload := []byte(`{"action_id":"never-seen","device_id":"fan-01","result":"ack"}`)
	require.NoError(t, c.HandleMessage("actuator/fan-01/status", payload))
	assert.Empty(t, store.updates)
}

func TestHandleMessageDuplicateAck(t *testing.T) {
	store := &fakeStore{}
	sup := supervisor.NewSupervisor(time.Minute, store, nil, zap.NewNop())
	defer sup.Shutdown()
	action := trackedAction(sup, "a-1")

	c := NewCorrelator("actuator/+/status", &fakeSubscriber{}, sup, zap.NewNop())

	payload := []byte(`{"action_id":"a-1","device_id":"fan-01","result":"ack"}`)
	require.NoError(t, c.HandleMessage("actuator/fan-01/status", payload))
	// 重复回执：第二条是 no-op
	require.NoError(t, c.HandleMessage("actuator/fan-01/status", payload))

	assert.Equal(t, models.ActionStatusAck, action.Status)
	assert.Len(t, store.updates, 1)
}
