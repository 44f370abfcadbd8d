package notifiers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/daniacca/chromasim/internal/tissue"
)

const webhookErrorBodyLimit = 512

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// ForRun limits delivery to frames of a single run.
func ForRun(id tissue.RunID) WebhookOption {
	return func(wn *WebhookNotifier) { wn.run = id }
}

// EveryNthFrame delivers only frames whose step is a multiple of n, so a
// renderer can sample long runs. n <= 1 delivers every frame.
func EveryNthFrame(n int) WebhookOption {
	return func(wn *WebhookNotifier) {
		if n < 1 {
			n = 1
		}
		wn.stride = n
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) WebhookOption {
	return func(wn *WebhookNotifier) { wn.headers.Set(key, value) }
}

// WithHTTPClient replaces the default client (5s timeout).
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(wn *WebhookNotifier) { wn.client = c }
}

// WebhookNotifier posts frame events as JSON to a renderer endpoint.
// Requests carry the run id and step in X-Chromasim-Run and
// X-Chromasim-Step.
type WebhookNotifier struct {
	id      string
	url     string
	run     tissue.RunID
	stride  int
	client  *http.Client
	headers http.Header
}

// NewWebhookNotifier creates a webhook posting to url.
func NewWebhookNotifier(id, url string, opts ...WebhookOption) *WebhookNotifier {
	wn := &WebhookNotifier{
		id:      id,
		url:     url,
		stride:  1,
		client:  &http.Client{Timeout: 5 * time.Second},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(wn)
	}
	return wn
}

func (wn *WebhookNotifier) ID() string   { return wn.id }
func (wn *WebhookNotifier) Type() string { return "webhook" }

// URL returns the target URL.
func (wn *WebhookNotifier) URL() string { return wn.url }

// Run returns the run the webhook is bound to, empty for every run.
func (wn *WebhookNotifier) Run() tissue.RunID { return wn.run }

// Stride returns the step sampling interval.
func (wn *WebhookNotifier) Stride() int { return wn.stride }

// Wants reports whether event passes the run filter and the stride.
func (wn *WebhookNotifier) Wants(event tissue.FrameEvent) bool {
	if wn.run != "" && event.RunID != wn.run {
		return false
	}
	return event.Frame.Step%wn.stride == 0
}

// Notify posts event if Wants accepts it; other events are skipped
// without error.
func (wn *WebhookNotifier) Notify(ctx context.Context, event tissue.FrameEvent) error {
	if !wn.Wants(event) {
		return nil
	}

	body, err := event.JSON()
	if err != nil {
		return fmt.Errorf("encoding frame %d of run %s: %w", event.Frame.Step, event.RunID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	for key, values := range wn.headers {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Chromasim-Run", string(event.RunID))
	req.Header.Set("X-Chromasim-Step", strconv.Itoa(event.Frame.Step))

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting frame %d to %s: %w", event.Frame.Step, wn.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, webhookErrorBodyLimit))
		return fmt.Errorf("renderer answered %d for frame %d: %s", resp.StatusCode, event.Frame.Step, bytes.TrimSpace(snippet))
	}
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close is a no-op; the notifier holds no connections of its own.
func (wn *WebhookNotifier) Close() error {
	return nil
}
