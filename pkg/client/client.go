// Package client is a Go client for the chromasim server. It offers
// fluent builders for tissue configs and run requests, and an HTTP
// client for the run API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/daniacca/chromasim/internal/tissue"
)

// CellType re-exports the engine's cell type tag.
type CellType = tissue.CellType

// Cell types accepted by the builders.
const (
	Base  = tissue.Base
	TypeA = tissue.TypeA
	TypeB = tissue.TypeB
	TypeC = tissue.TypeC
	TypeD = tissue.TypeD
)

// ConfigBuilder provides a fluent API for building tissue configs.
// Proportions weight the type drawn for each initially placed cell;
// per-type parameters override the defaults.
type ConfigBuilder struct {
	name        string
	proportions map[CellType]float64
	cellTypes   []*CellTypeBuilder
	spread      float64
	bucketSize  int
}

// NewConfig creates a config builder with the given name.
func NewConfig(name string) *ConfigBuilder {
	return &ConfigBuilder{
		name:        name,
		proportions: make(map[CellType]float64),
		cellTypes:   make([]*CellTypeBuilder, 0),
	}
}

// Proportion sets the weight of t in the initial type draw.
func (cb *ConfigBuilder) Proportion(t CellType, weight float64) *ConfigBuilder {
	cb.proportions[t] = weight
	return cb
}

// CellType adds per-type behavioral parameters.
func (cb *ConfigBuilder) CellType(ctb *CellTypeBuilder) *ConfigBuilder {
	cb.cellTypes = append(cb.cellTypes, ctb)
	return cb
}

// Spread sets the spread factor of the initial scatter; the standard
// deviation is the spread times the initial population.
func (cb *ConfigBuilder) Spread(f float64) *ConfigBuilder {
	cb.spread = f
	return cb
}

// BucketSize sets the neighborhood index bucket edge.
func (cb *ConfigBuilder) BucketSize(n int) *ConfigBuilder {
	cb.bucketSize = n
	return cb
}

// Build converts the builder to a tissue config. Zero-valued settings
// are left for the server to default.
func (cb *ConfigBuilder) Build() tissue.Config {
	cfg := tissue.Config{
		Name:         cb.name,
		SpreadFactor: cb.spread,
		BucketSize:   cb.bucketSize,
	}
	if len(cb.proportions) > 0 {
		cfg.TypeProportions = make(map[CellType]float64, len(cb.proportions))
		for t, w := range cb.proportions {
			cfg.TypeProportions[t] = w
		}
	}
	if len(cb.cellTypes) > 0 {
		cfg.CellTypes = make(map[CellType]tissue.CellParams, len(cb.cellTypes))
		for _, ctb := range cb.cellTypes {
			cfg.CellTypes[ctb.cellType] = ctb.Build()
		}
	}
	return cfg
}

// CellTypeBuilder provides a fluent API for the parameters of one cell type.
type CellTypeBuilder struct {
	cellType CellType
	params   tissue.CellParams
}

// NewCellType starts from the default parameters for t.
func NewCellType(t CellType) *CellTypeBuilder {
	return &CellTypeBuilder{
		cellType: t,
		params:   tissue.DefaultCellParams,
	}
}

// Movement sets the per-step movement probability.
func (ctb *CellTypeBuilder) Movement(p float64) *CellTypeBuilder {
	ctb.params.MovementProbability = p
	return ctb
}

// Division sets the per-step division probability.
func (ctb *CellTypeBuilder) Division(p float64) *CellTypeBuilder {
	ctb.params.DivisionProbability = p
	return ctb
}

// Radius sets the neighborhood radius.
func (ctb *CellTypeBuilder) Radius(r float64) *CellTypeBuilder {
	ctb.params.NeighborhoodRadius = r
	return ctb
}

// Build returns the cell parameters.
func (ctb *CellTypeBuilder) Build() tissue.CellParams {
	return ctb.params
}

// RunRequest is the body of a run creation request.
type RunRequest struct {
	ID                string         `json:"id,omitempty"`
	TotalSteps        int            `json:"total_steps"`
	InitialPopulation int            `json:"initial_population"`
	Seed              *int64         `json:"seed,omitempty"`
	Config            *tissue.Config `json:"config,omitempty"`
	Notifiers         []string       `json:"notifiers,omitempty"`
}

// RunBuilder provides a fluent API for run creation requests.
type RunBuilder struct {
	req RunRequest
}

// NewRun creates a run builder. An empty id lets the server pick one.
func NewRun(id string) *RunBuilder {
	return &RunBuilder{req: RunRequest{ID: id, TotalSteps: 100, InitialPopulation: 100}}
}

// Steps sets the number of steps to run.
func (rb *RunBuilder) Steps(n int) *RunBuilder {
	rb.req.TotalSteps = n
	return rb
}

// Cells sets the initial population.
func (rb *RunBuilder) Cells(n int) *RunBuilder {
	rb.req.InitialPopulation = n
	return rb
}

// Seed fixes the random seed so the run is reproducible.
func (rb *RunBuilder) Seed(seed int64) *RunBuilder {
	rb.req.Seed = &seed
	return rb
}

// Config sets the tissue config. Without it the server default is used.
func (rb *RunBuilder) Config(cb *ConfigBuilder) *RunBuilder {
	cfg := cb.Build()
	rb.req.Config = &cfg
	return rb
}

// Notifiers restricts frame delivery to the given notifiers plus the
// server's built-in stream.
func (rb *RunBuilder) Notifiers(ids ...string) *RunBuilder {
	rb.req.Notifiers = append(rb.req.Notifiers, ids...)
	return rb
}

// Build returns the request body.
func (rb *RunBuilder) Build() RunRequest {
	return rb.req
}

// RunInfo describes a live run on the server.
type RunInfo struct {
	ID                string         `json:"id"`
	Seed              int64          `json:"seed"`
	TotalSteps        int            `json:"total_steps"`
	InitialPopulation int            `json:"initial_population"`
	StepsTaken        int            `json:"steps_taken"`
	Population        int            `json:"population"`
	Counts            map[string]int `json:"counts"`
	Running           bool           `json:"running"`
	Done              bool           `json:"done"`
	Error             string         `json:"error,omitempty"`
}

// StatusError is returned when the server answers with an unexpected status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to a chromasim server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) do(ctx context.Context, method string, query url.Values, body any, out any, pathParts ...string) error {
	u, err := url.JoinPath(c.baseURL, pathParts...)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// CreateRun creates a run on the server.
func (c *Client) CreateRun(ctx context.Context, run *RunBuilder) (RunInfo, error) {
	var info RunInfo
	err := c.do(ctx, http.MethodPost, nil, run.Build(), &info, "runs")
	return info, err
}

// ListRuns returns every live run.
func (c *Client) ListRuns(ctx context.Context) ([]RunInfo, error) {
	var out struct {
		Runs []RunInfo `json:"runs"`
	}
	err := c.do(ctx, http.MethodGet, nil, nil, &out, "runs")
	return out.Runs, err
}

// GetRun returns the current state of a run.
func (c *Client) GetRun(ctx context.Context, id string) (RunInfo, error) {
	var info RunInfo
	err := c.do(ctx, http.MethodGet, nil, nil, &info, "runs", id)
	return info, err
}

// Step advances a run by n steps, or fewer if it finishes first.
func (c *Client) Step(ctx context.Context, id string, n int) (RunInfo, error) {
	var info RunInfo
	q := url.Values{"n": {strconv.Itoa(n)}}
	err := c.do(ctx, http.MethodPost, q, nil, &info, "runs", id, "step")
	return info, err
}

// Start runs the simulation in the background, one step per interval.
// A zero interval uses the server default.
func (c *Client) Start(ctx context.Context, id string, interval time.Duration) (RunInfo, error) {
	var info RunInfo
	var q url.Values
	if interval > 0 {
		q = url.Values{"interval": {strconv.FormatInt(interval.Milliseconds(), 10)}}
	}
	err := c.do(ctx, http.MethodPost, q, nil, &info, "runs", id, "start")
	return info, err
}

// Stop halts a background run.
func (c *Client) Stop(ctx context.Context, id string) (RunInfo, error) {
	var info RunInfo
	err := c.do(ctx, http.MethodPost, nil, nil, &info, "runs", id, "stop")
	return info, err
}

// DeleteRun stops and removes a run.
func (c *Client) DeleteRun(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, nil, nil, nil, "runs", id)
}

// Frames returns the frame history of a run.
func (c *Client) Frames(ctx context.Context, id string) (tissue.History, error) {
	var h tissue.History
	err := c.do(ctx, http.MethodGet, nil, nil, &h, "runs", id, "frames")
	return h, err
}

// Frame returns the frame captured before step t.
func (c *Client) Frame(ctx context.Context, id string, t int) (tissue.Frame, error) {
	var f tissue.Frame
	err := c.do(ctx, http.MethodGet, nil, nil, &f, "runs", id, "frames", strconv.Itoa(t))
	return f, err
}

// Save asks the server to write the run's frames to disk and returns the path.
func (c *Client) Save(ctx context.Context, id string) (string, error) {
	var out struct {
		Path string `json:"path"`
	}
	err := c.do(ctx, http.MethodPost, nil, nil, &out, "runs", id, "save")
	return out.Path, err
}

type registerNotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

// WebhookOptions narrows what a webhook receives.
type WebhookOptions struct {
	// Run binds the webhook to one run; empty receives every run.
	Run string
	// Stride delivers only every nth frame; zero delivers all.
	Stride int
	// Headers are added to every request.
	Headers map[string]string
}

// RegisterWebhook registers a webhook that receives frame events.
func (c *Client) RegisterWebhook(ctx context.Context, id, webhookURL string, opts WebhookOptions) error {
	cfg := map[string]any{"url": webhookURL}
	if opts.Run != "" {
		cfg["run_id"] = opts.Run
	}
	if opts.Stride > 0 {
		cfg["stride"] = opts.Stride
	}
	if len(opts.Headers) > 0 {
		h := make(map[string]any, len(opts.Headers))
		for k, v := range opts.Headers {
			h[k] = v
		}
		cfg["headers"] = h
	}
	return c.do(ctx, http.MethodPost, nil, registerNotifierRequest{Type: "webhook", ID: id, Config: cfg}, nil, "notifiers")
}

// UnregisterNotifier removes a notifier.
func (c *Client) UnregisterNotifier(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, nil, nil, nil, "notifiers", id)
}
