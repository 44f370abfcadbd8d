package notifiers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/daniacca/chromasim/internal/tissue"
)

// frameSink records the requests a renderer endpoint receives.
type frameSink struct {
	mu      sync.Mutex
	events  []tissue.FrameEvent
	headers []http.Header
}

func (fs *frameSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var event tissue.FrameEvent
	if err := json.Unmarshal(body, &event); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	fs.mu.Lock()
	fs.events = append(fs.events, event)
	fs.headers = append(fs.headers, r.Header.Clone())
	fs.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (fs *frameSink) steps() []int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	steps := make([]int, len(fs.events))
	for i, e := range fs.events {
		steps[i] = e.Frame.Step
	}
	return steps
}

func TestWebhookNotifier(t *testing.T) {
	sink := &frameSink{}
	server := httptest.NewServer(sink)
	defer server.Close()

	notifier := NewWebhookNotifier("renderer", server.URL, WithHeader("Authorization", "Bearer token"))

	if notifier.ID() != "renderer" {
		t.Errorf("Expected ID 'renderer', got '%s'", notifier.ID())
	}
	if notifier.Type() != "webhook" {
		t.Errorf("Expected type 'webhook', got '%s'", notifier.Type())
	}
	if notifier.URL() != server.URL || notifier.Run() != "" || notifier.Stride() != 1 {
		t.Errorf("Unexpected settings url=%s run=%q stride=%d", notifier.URL(), notifier.Run(), notifier.Stride())
	}

	if err := notifier.Notify(context.Background(), testEvent("run-9", 2)); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(sink.events))
	}
	got, h := sink.events[0], sink.headers[0]
	if got.RunID != "run-9" || got.Frame.Step != 2 || got.Population != 2 {
		t.Errorf("Unexpected event %+v", got)
	}
	if h.Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON content type, got %q", h.Get("Content-Type"))
	}
	if h.Get("X-Chromasim-Run") != "run-9" || h.Get("X-Chromasim-Step") != "2" {
		t.Errorf("Expected run and step headers, got run=%q step=%q", h.Get("X-Chromasim-Run"), h.Get("X-Chromasim-Step"))
	}
	if h.Get("Authorization") != "Bearer token" {
		t.Errorf("Expected custom header, got %q", h.Get("Authorization"))
	}

	if err := notifier.Close(); err != nil {
		t.Errorf("Close should not return error: %v", err)
	}
}

func TestWebhookNotifier_ForRun(t *testing.T) {
	sink := &frameSink{}
	server := httptest.NewServer(sink)
	defer server.Close()

	notifier := NewWebhookNotifier("bound", server.URL, ForRun("stripes"))
	ctx := context.Background()
	for _, e := range []tissue.FrameEvent{
		testEvent("stripes", 0),
		testEvent("spots", 0),
		testEvent("stripes", 1),
		testEvent("spots", 1),
	} {
		if err := notifier.Notify(ctx, e); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 2 {
		t.Fatalf("Expected 2 frames of run stripes, got %d", len(sink.events))
	}
	for _, e := range sink.events {
		if e.RunID != "stripes" {
			t.Errorf("Expected only run stripes, got %s", e.RunID)
		}
	}
}

func TestWebhookNotifier_EveryNthFrame(t *testing.T) {
	sink := &frameSink{}
	server := httptest.NewServer(sink)
	defer server.Close()

	notifier := NewWebhookNotifier("sampled", server.URL, EveryNthFrame(3))
	for step := 0; step < 10; step++ {
		if err := notifier.Notify(context.Background(), testEvent("r", step)); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
	}

	steps := sink.steps()
	want := []int{0, 3, 6, 9}
	if len(steps) != len(want) {
		t.Fatalf("Expected steps %v, got %v", want, steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("Expected steps %v, got %v", want, steps)
			break
		}
	}
}

func TestWebhookNotifier_Wants(t *testing.T) {
	tests := []struct {
		name  string
		opts  []WebhookOption
		event tissue.FrameEvent
		want  bool
	}{
		{"no filter", nil, testEvent("a", 7), true},
		{"other run", []WebhookOption{ForRun("b")}, testEvent("a", 0), false},
		{"off stride", []WebhookOption{EveryNthFrame(2)}, testEvent("a", 3), false},
		{"on stride and run", []WebhookOption{ForRun("a"), EveryNthFrame(2)}, testEvent("a", 4), true},
		{"stride below one", []WebhookOption{EveryNthFrame(0)}, testEvent("a", 5), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wn := NewWebhookNotifier("w", "http://unused", tt.opts...)
			if got := wn.Wants(tt.event); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "renderer busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier("failing", server.URL)
	err := notifier.Notify(context.Background(), testEvent("r", 0))
	if err == nil || !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "renderer busy") {
		t.Errorf("Expected error with status and body, got %v", err)
	}

	unreachable := NewWebhookNotifier("unreachable", "http://127.0.0.1:1/hook")
	if err := unreachable.Notify(context.Background(), testEvent("r", 0)); err == nil {
		t.Error("Expected error for unreachable endpoint")
	}
}
