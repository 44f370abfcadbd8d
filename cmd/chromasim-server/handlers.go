package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/daniacca/chromasim/internal/store"
	"github.com/daniacca/chromasim/internal/tissue"
	"github.com/daniacca/chromasim/internal/tissue/notifiers"
)

// extractRunID extracts the run ID from a path like "/runs/{id}/..."
// Returns the run ID and the remaining path, or empty string if not found
func extractRunID(path, prefix string) (tissue.RunID, string) {
	if !strings.HasPrefix(path, prefix) {
		return "", ""
	}
	rest := path[len(prefix):]

	idx := strings.Index(rest, "/")
	if idx == -1 {
		return tissue.RunID(rest), ""
	}
	return tissue.RunID(rest[:idx]), rest[idx:]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// runInfo is the JSON view of a live run
type runInfo struct {
	ID                tissue.RunID   `json:"id"`
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

func describeRun(sim *tissue.Simulation) runInfo {
	params := sim.Params()
	counts := make(map[string]int)
	for ct, n := range sim.CountByType() {
		counts[ct.String()] = n
	}
	info := runInfo{
		ID:                sim.ID(),
		Seed:              sim.Seed(),
		TotalSteps:        params.TotalSteps,
		InitialPopulation: params.InitialPopulation,
		StepsTaken:        sim.StepsTaken(),
		Population:        sim.Population(),
		Counts:            counts,
		Running:           sim.IsRunning(),
		Done:              sim.Done(),
	}
	if err := sim.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// POST /runs
// Body: { "id": "...", "total_steps": 100, "initial_population": 50, "seed": 1, "config": {...}, "notifiers": ["..."] }
type createRunRequest struct {
	ID                string         `json:"id"`
	TotalSteps        int            `json:"total_steps"`
	InitialPopulation int            `json:"initial_population"`
	Seed              *int64         `json:"seed"`
	Config            *tissue.Config `json:"config"`
	Notifiers         []string       `json:"notifiers"`
}

func (s *Server) handleRunsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	params := tissue.Params{
		TotalSteps:        req.TotalSteps,
		InitialPopulation: req.InitialPopulation,
		Seed:              req.Seed,
		Config:            s.defaultConfig,
	}
	if req.Config != nil {
		params.Config = *req.Config
	}

	var targets []string
	if len(req.Notifiers) > 0 {
		for _, id := range req.Notifiers {
			if _, ok := s.notifierMgr.GetNotifier(id); !ok {
				http.Error(w, "unknown notifier: "+id, http.StatusBadRequest)
				return
			}
		}
		// built-in sinks always receive frames
		targets = append(targets, streamNotifierID)
		if s.store != nil {
			targets = append(targets, recorderNotifierID)
		}
		targets = append(targets, req.Notifiers...)
	}

	sim, err := s.runs.CreateRun(tissue.RunID(req.ID), params, tissue.WithNotifications(s.notifierMgr, targets...))
	if err != nil {
		var ve *tissue.ValidationError
		var ce *tissue.ConfigError
		if errors.As(err, &ve) || errors.As(err, &ce) {
			http.Error(w, "invalid run: "+err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "cannot create run: "+err.Error(), http.StatusConflict)
		return
	}

	if s.store != nil {
		if err := s.store.SaveRun(r.Context(), sim.History()); err != nil {
			s.logger.Errorf("Failed to record run: run_id=%s error=%v", sim.ID(), err)
		}
	}

	s.logger.Infof("Run created: run_id=%s steps=%d cells=%d seed=%d", sim.ID(), req.TotalSteps, req.InitialPopulation, sim.Seed())
	writeJSON(w, http.StatusCreated, describeRun(sim))
}

// GET /runs
func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	ids := s.runs.ListRuns()
	runs := make([]runInfo, 0, len(ids))
	for _, id := range ids {
		if sim, ok := s.runs.GetRun(id); ok {
			runs = append(runs, describeRun(sim))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleRunRoutes routes requests to run-specific handlers
// Handles paths like /runs/{id}/step, /runs/{id}/frames, etc.
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	runID, rest := extractRunID(r.URL.Path, "/runs/")
	if runID == "" {
		http.Error(w, "run ID is required in path: /runs/{id}/...", http.StatusBadRequest)
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		s.withRun(w, runID, func(sim *tissue.Simulation) {
			writeJSON(w, http.StatusOK, describeRun(sim))
		})
	case rest == "" && r.Method == http.MethodDelete:
		s.handleDeleteRun(w, runID)
	case rest == "/step" && r.Method == http.MethodPost:
		s.withRun(w, runID, func(sim *tissue.Simulation) { s.handleStep(w, r, sim) })
	case rest == "/start" && r.Method == http.MethodPost:
		s.withRun(w, runID, func(sim *tissue.Simulation) { s.handleStart(w, r, sim) })
	case rest == "/stop" && r.Method == http.MethodPost:
		s.withRun(w, runID, func(sim *tissue.Simulation) {
			sim.Stop()
			s.logger.Infof("Run stopped: run_id=%s", runID)
			writeJSON(w, http.StatusOK, describeRun(sim))
		})
	case rest == "/frames" && r.Method == http.MethodGet:
		s.handleGetFrames(w, r, runID)
	case strings.HasPrefix(rest, "/frames/") && r.Method == http.MethodGet:
		s.handleGetFrame(w, r, runID, strings.TrimPrefix(rest, "/frames/"))
	case rest == "/save" && r.Method == http.MethodPost:
		s.withRun(w, runID, func(sim *tissue.Simulation) { s.handleSave(w, r, sim) })
	case rest == "/stream" && r.Method == http.MethodGet:
		s.withRun(w, runID, func(sim *tissue.Simulation) {
			if err := s.stream.Serve(w, r, sim.ID()); err != nil {
				s.logger.Warnf("Stream failed: run_id=%s error=%v", runID, err)
			}
		})
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) withRun(w http.ResponseWriter, id tissue.RunID, fn func(*tissue.Simulation)) {
	sim, ok := s.runs.GetRun(id)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	fn(sim)
}

// DELETE /runs/{id}
func (s *Server) handleDeleteRun(w http.ResponseWriter, id tissue.RunID) {
	if err := s.runs.DeleteRun(id); err != nil {
		s.logger.Warnf("Failed to delete run: run_id=%s error=%v", id, err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Infof("Run deleted: run_id=%s", id)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("run deleted"))
}

// POST /runs/{id}/step
// Query param: n (default: 1)
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, sim *tissue.Simulation) {
	n := 1
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		v, err := strconv.Atoi(nStr)
		if err != nil || v <= 0 {
			http.Error(w, "invalid n: must be a positive integer", http.StatusBadRequest)
			return
		}
		n = v
	}

	for i := 0; i < n; i++ {
		err := sim.Step(r.Context())
		if errors.Is(err, tissue.ErrSimulationComplete) {
			if i == 0 {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			break
		}
		if err != nil {
			s.logger.Errorf("Step failed: run_id=%s error=%v", sim.ID(), err)
			http.Error(w, "step failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, describeRun(sim))
}

// POST /runs/{id}/start
// Query param: interval in milliseconds (default: server step interval)
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, sim *tissue.Simulation) {
	interval := s.stepInterval
	if intervalStr := r.URL.Query().Get("interval"); intervalStr != "" {
		if ms, err := strconv.Atoi(intervalStr); err == nil && ms > 0 {
			interval = time.Duration(ms) * time.Millisecond
		} else {
			http.Error(w, "invalid interval: must be a positive integer (milliseconds)", http.StatusBadRequest)
			return
		}
	}
	if sim.Done() {
		http.Error(w, tissue.ErrSimulationComplete.Error(), http.StatusConflict)
		return
	}

	sim.Start(interval)
	s.logger.Infof("Run started: run_id=%s interval=%v", sim.ID(), interval)
	writeJSON(w, http.StatusOK, describeRun(sim))
}

// GET /runs/{id}/frames
// Served from memory for live runs and from the database otherwise.
func (s *Server) handleGetFrames(w http.ResponseWriter, r *http.Request, id tissue.RunID) {
	if sim, ok := s.runs.GetRun(id); ok {
		writeJSON(w, http.StatusOK, sim.History())
		return
	}
	if s.store == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	h, err := s.store.LoadHistory(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// GET /runs/{id}/frames/{t}
func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request, id tissue.RunID, stepStr string) {
	step, err := strconv.Atoi(stepStr)
	if err != nil || step < 0 {
		http.Error(w, "invalid step: must be a non-negative integer", http.StatusBadRequest)
		return
	}

	var frame tissue.Frame
	var found bool
	if sim, ok := s.runs.GetRun(id); ok {
		frame, found = sim.Frame(step)
	} else if s.store != nil {
		frame, found, err = s.store.LoadFrame(r.Context(), id, step)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
	}
	if !found {
		http.Error(w, "frame not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// POST /runs/{id}/save
// Writes the frame history to the frames directory and, when configured, the database
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, sim *tissue.Simulation) {
	if s.framesDir == "" {
		http.Error(w, "frames directory not configured", http.StatusInternalServerError)
		return
	}

	history := sim.History()
	path := tissue.HistoryPath(s.framesDir, sim.ID())
	if err := tissue.SaveHistory(path, history); err != nil {
		s.logger.Errorf("Failed to save frames: run_id=%s error=%v", sim.ID(), err)
		http.Error(w, "failed to save frames: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if s.store != nil {
		if err := s.store.SaveHistory(r.Context(), history); err != nil {
			s.logger.Errorf("Failed to store frames: run_id=%s error=%v", sim.ID(), err)
			http.Error(w, "failed to store frames: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	s.logger.Debugf("Frames saved: run_id=%s path=%s frames=%d", sim.ID(), path, len(history.Frames))
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"path":   path,
		"frames": len(history.Frames),
	})
}

// handleArchiveRoutes serves runs recorded in the database
// GET /archive, GET /archive/{id}, DELETE /archive/{id}
func (s *Server) handleArchiveRoutes(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "no database configured", http.StatusServiceUnavailable)
		return
	}

	if r.URL.Path == "/archive" && r.Method == http.MethodGet {
		runs, err := s.store.ListRuns(r.Context())
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		if runs == nil {
			runs = []store.RunSummary{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
		return
	}

	runID, rest := extractRunID(r.URL.Path, "/archive/")
	if runID == "" || rest != "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h, err := s.store.LoadHistory(r.Context(), runID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h)
	case http.MethodDelete:
		if err := s.store.DeleteRun(r.Context(), runID); err != nil {
			s.writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("archived run deleted"))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Errorf("Database error: %v", err)
	http.Error(w, "database error: "+err.Error(), http.StatusInternalServerError)
}

// handleNotifiersRoutes handles notifier management endpoints
func (s *Server) handleNotifiersRoutes(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/notifiers" && r.Method == http.MethodGet:
		s.handleListNotifiers(w, r)
	case r.URL.Path == "/notifiers" && r.Method == http.MethodPost:
		s.handleRegisterNotifier(w, r)
	case strings.HasPrefix(r.URL.Path, "/notifiers/") && r.Method == http.MethodDelete:
		s.handleUnregisterNotifier(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GET /notifiers
func (s *Server) handleListNotifiers(w http.ResponseWriter, _ *http.Request) {
	ids := s.notifierMgr.ListNotifiers()

	list := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		if notifier, exists := s.notifierMgr.GetNotifier(id); exists {
			entry := map[string]string{
				"id":   id,
				"type": notifier.Type(),
			}
			if wh, ok := notifier.(*notifiers.WebhookNotifier); ok {
				entry["run_id"] = string(wh.Run())
				entry["stride"] = strconv.Itoa(wh.Stride())
			}
			list = append(list, entry)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifiers": list})
}

// POST /notifiers
// Body: { "type": "webhook", "id": "my-webhook", "config": { "url": "http://...", "run_id": "...", "stride": 10, "headers": {...} } }
// run_id binds the webhook to one run; stride delivers every nth frame.
type registerNotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

func (s *Server) handleRegisterNotifier(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req registerNotifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}

	var notifier tissue.Notifier
	switch req.Type {
	case "webhook":
		url, ok := req.Config["url"].(string)
		if !ok || url == "" {
			http.Error(w, "webhook URL is required", http.StatusBadRequest)
			return
		}
		var opts []notifiers.WebhookOption
		if run, ok := req.Config["run_id"].(string); ok && run != "" {
			opts = append(opts, notifiers.ForRun(tissue.RunID(run)))
		}
		if stride, ok := req.Config["stride"].(float64); ok {
			if stride < 1 || stride != float64(int(stride)) {
				http.Error(w, "stride must be a positive integer", http.StatusBadRequest)
				return
			}
			opts = append(opts, notifiers.EveryNthFrame(int(stride)))
		}
		if headers, ok := req.Config["headers"].(map[string]any); ok {
			for k, v := range headers {
				if vStr, ok := v.(string); ok {
					opts = append(opts, notifiers.WithHeader(k, vStr))
				}
			}
		}
		notifier = notifiers.NewWebhookNotifier(req.ID, url, opts...)
	default:
		http.Error(w, "unknown notifier type: "+req.Type, http.StatusBadRequest)
		return
	}

	if err := s.notifierMgr.RegisterNotifier(notifier); err != nil {
		http.Error(w, "cannot register notifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Infof("Notifier registered: id=%s type=%s", req.ID, req.Type)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier registered"))
}

// DELETE /notifiers/{id}
func (s *Server) handleUnregisterNotifier(w http.ResponseWriter, r *http.Request) {
	notifierID := strings.TrimPrefix(r.URL.Path, "/notifiers/")
	if notifierID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}
	if notifierID == streamNotifierID || notifierID == recorderNotifierID {
		http.Error(w, "built-in notifier cannot be removed", http.StatusBadRequest)
		return
	}

	if err := s.notifierMgr.UnregisterNotifier(notifierID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier unregistered"))
}
