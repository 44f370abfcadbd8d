package tissue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockNotifier is a test implementation of Notifier
type mockNotifier struct {
	id         string
	notifyFunc func(context.Context, FrameEvent) error
	closeFunc  func() error

	mu     sync.Mutex
	events []FrameEvent
	calls  int
	closed bool
}

func (m *mockNotifier) ID() string   { return m.id }
func (m *mockNotifier) Type() string { return "mock" }

func (m *mockNotifier) Notify(ctx context.Context, event FrameEvent) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.notifyFunc != nil {
		if err := m.notifyFunc(ctx, event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

func (m *mockNotifier) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockNotifier) getEvents() []FrameEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FrameEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *mockNotifier) getCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockNotifier) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func testEvent(step int) FrameEvent {
	return NewFrameEvent("run-1", Frame{Step: step, X: []int{0}, Y: []int{0}, Types: []CellType{TypeA}})
}

func TestFrameEvent_JSON(t *testing.T) {
	data, err := testEvent(3).JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["run_id"] != "run-1" {
		t.Errorf("Expected run_id run-1, got %v", decoded["run_id"])
	}
	if decoded["population"] != float64(1) {
		t.Errorf("Expected population 1, got %v", decoded["population"])
	}
	frame := decoded["frame"].(map[string]any)
	if types := frame["types"].([]any); types[0] != "a" {
		t.Errorf("Expected type names in frame, got %v", types)
	}
}

func TestNotificationManager_RegisterNotifier(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()

	if err := nm.RegisterNotifier(&mockNotifier{id: "test-1"}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := nm.RegisterNotifier(&mockNotifier{id: "test-1"}); err == nil {
		t.Error("Expected error for duplicate registration")
	}
	if err := nm.RegisterNotifier(nil); err == nil {
		t.Error("Expected error for nil notifier")
	}
	if err := nm.RegisterNotifier(&mockNotifier{}); err == nil {
		t.Error("Expected error for empty ID")
	}
	if ids := nm.ListNotifiers(); len(ids) != 1 || ids[0] != "test-1" {
		t.Errorf("Expected [test-1], got %v", ids)
	}
}

func TestNotificationManager_UnregisterNotifier(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()

	n := &mockNotifier{id: "gone"}
	nm.RegisterNotifier(n)
	if err := nm.UnregisterNotifier("gone"); err != nil {
		t.Fatalf("UnregisterNotifier failed: %v", err)
	}
	if !n.isClosed() {
		t.Error("Expected notifier to be closed on unregister")
	}
	if _, ok := nm.GetNotifier("gone"); ok {
		t.Error("Expected notifier to be removed")
	}
	if err := nm.UnregisterNotifier("gone"); err == nil {
		t.Error("Expected error for unknown notifier")
	}

	failing := &mockNotifier{id: "bad", closeFunc: func() error { return errors.New("boom") }}
	nm.RegisterNotifier(failing)
	if err := nm.UnregisterNotifier("bad"); err == nil {
		t.Error("Expected close error to surface")
	}
}

func TestNotificationManager_EnqueueBroadcast(t *testing.T) {
	nm := NewNotificationManager()
	a := &mockNotifier{id: "a"}
	b := &mockNotifier{id: "b"}
	nm.RegisterNotifier(a)
	nm.RegisterNotifier(b)

	for i := 0; i < 5; i++ {
		nm.Enqueue(testEvent(i))
	}
	if err := nm.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for _, n := range []*mockNotifier{a, b} {
		events := n.getEvents()
		if len(events) != 5 {
			t.Fatalf("Notifier %s: expected 5 events, got %d", n.id, len(events))
		}
		for i, ev := range events {
			if ev.Frame.Step != i {
				t.Errorf("Notifier %s: expected step %d at position %d, got %d", n.id, i, i, ev.Frame.Step)
			}
		}
		if !n.isClosed() {
			t.Errorf("Notifier %s: expected Close to close it", n.id)
		}
	}
}

func TestNotificationManager_EnqueueTargeted(t *testing.T) {
	nm := NewNotificationManager()
	a := &mockNotifier{id: "a"}
	b := &mockNotifier{id: "b"}
	nm.RegisterNotifier(a)
	nm.RegisterNotifier(b)

	nm.Enqueue(testEvent(0), "b", "missing")
	nm.Close()

	if len(a.getEvents()) != 0 {
		t.Errorf("Expected no events for a, got %d", len(a.getEvents()))
	}
	if len(b.getEvents()) != 1 {
		t.Errorf("Expected 1 event for b, got %d", len(b.getEvents()))
	}

	// enqueue after close is dropped
	nm.Enqueue(testEvent(1))
}

func TestNotificationManager_Retry(t *testing.T) {
	nm := NewNotificationManager()
	nm.initialBackoff = time.Millisecond

	var mu sync.Mutex
	failures := 2
	flaky := &mockNotifier{id: "flaky", notifyFunc: func(context.Context, FrameEvent) error {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return errors.New("temporary")
		}
		return nil
	}}
	always := &mockNotifier{id: "down", notifyFunc: func(context.Context, FrameEvent) error {
		return errors.New("permanent")
	}}
	nm.RegisterNotifier(flaky)
	nm.RegisterNotifier(always)

	nm.Enqueue(testEvent(0))
	nm.Close()

	if flaky.getCalls() != 3 || len(flaky.getEvents()) != 1 {
		t.Errorf("Expected delivery on the third attempt, got %d calls and %d events", flaky.getCalls(), len(flaky.getEvents()))
	}
	if always.getCalls() != nm.maxRetries+1 {
		t.Errorf("Expected %d attempts, got %d", nm.maxRetries+1, always.getCalls())
	}
}

func TestNotificationManager_NotifySync(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()

	ok := &mockNotifier{id: "ok"}
	bad := &mockNotifier{id: "bad", notifyFunc: func(context.Context, FrameEvent) error { return errors.New("nope") }}
	nm.RegisterNotifier(ok)
	nm.RegisterNotifier(bad)

	if err := nm.Notify(context.Background(), testEvent(0), "ok"); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := nm.Notify(context.Background(), testEvent(1)); err == nil {
		t.Error("Expected error from failing notifier")
	}
	if err := nm.Notify(context.Background(), testEvent(2), "missing"); err == nil {
		t.Error("Expected error for unknown notifier")
	}
	if len(ok.getEvents()) != 2 {
		t.Errorf("Expected 2 synchronous deliveries, got %d", len(ok.getEvents()))
	}
}
