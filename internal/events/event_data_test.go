package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScanStatusData_EventType tests the status to event type mapping
func TestScanStatusData_EventType(t *testing.T) {
	tests := []struct {
		status string
		want   EventType
	}{
		{"started", ScanStarted},
		{"progress", ScanProgress},
		{"checkpoint_failed", CheckpointFailed},
		{"completed", ScanCompleted},
		{"failed", ScanFailed},
		{"", ScanStarted},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			d := &ScanStatusData{Status: tt.status}
			assert.Equal(t, tt.want, d.EventType())
		})
	}
}

// TestEvent_JSONDecodesTypedData tests that known event types decode to ScanStatusData
func TestEvent_JSONDecodesTypedData(t *testing.T) {
	ts := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	event := &Event{
		Type:      ScanProgress,
		Timestamp: ts,
		Module:    "work",
		Data: &ScanStatusData{
			RunID:    "run-1",
			Analysis: "integral-12",
			Status:   "progress",
			Progress: &ProgressInfo{
				Current: "123456789012345678901234567890",
				Total:   "999999999999999999999999999999",
				Percent: 12.3,
				Details: map[string]interface{}{"rank_size": 10},
			},
			Timestamp: ts,
		},
	}

	jsonData, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"type":"ScanProgress"`)

	var decoded Event
	require.NoError(t, json.Unmarshal(jsonData, &decoded))
	assert.Equal(t, ScanProgress, decoded.Type)
	assert.Equal(t, "work", decoded.Module)

	data, ok := decoded.Data.(*ScanStatusData)
	require.True(t, ok)
	assert.Equal(t, "integral-12", data.Analysis)
	assert.Equal(t, "123456789012345678901234567890", data.Progress.Current)
	assert.Equal(t, float64(10), data.Progress.Details["rank_size"])
}

// TestEvent_JSONUnknownType tests the generic fallback
func TestEvent_JSONUnknownType(t *testing.T) {
	var decoded Event
	err := json.Unmarshal([]byte(`{"type":"Custom","module":"x","data":{"a":1}}`), &decoded)
	require.NoError(t, err)

	data, ok := decoded.Data.(*GenericEventData)
	require.True(t, ok)
	assert.Equal(t, EventType("Custom"), data.EventType())
	assert.Equal(t, float64(1), data.Data["a"])

	require.NoError(t, json.Unmarshal([]byte(`{"type":"ScanStarted","data":null}`), &decoded))
	assert.Nil(t, decoded.Data)
}

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var started, all []*Event
	unsubscribe := bus.Subscribe(ScanStarted, func(e *Event) { started = append(started, e) })
	bus.SubscribeAll(func(e *Event) { all = append(all, e) })

	bus.Publish("work", &ScanStatusData{Analysis: "a", Status: "started"})
	bus.Publish("work", &ScanStatusData{Analysis: "a", Status: "completed"})

	require.Len(t, started, 1)
	assert.Equal(t, ScanStarted, started[0].Type)
	assert.Len(t, all, 2)

	unsubscribe()
	bus.Publish("work", &ScanStatusData{Analysis: "b", Status: "started"})
	assert.Len(t, started, 1)
	assert.Len(t, all, 3)
}

func TestBus_Emit(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got []*Event
	bus.SubscribeAll(func(e *Event) { got = append(got, e) })

	bus.Emit("ignored", &ScanStatusData{Status: "failed", Error: "boom"})
	bus.Emit("Custom", map[string]interface{}{"k": "v"})
	bus.Emit("Custom", 42)

	require.Len(t, got, 2)
	assert.Equal(t, ScanFailed, got[0].Type)
	assert.Equal(t, EventType("Custom"), got[1].Type)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	count := 0
	bus.SubscribeAll(func(*Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish("work", &ScanStatusData{Status: "progress"})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, count)
}
