package tissue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSimulationComplete is returned by Step once every requested step has run.
var ErrSimulationComplete = errors.New("simulation already ran all steps")

// Params are the construction parameters of a simulation.
type Params struct {
	TotalSteps        int    `json:"total_steps"`
	InitialPopulation int    `json:"initial_population"`
	Seed              *int64 `json:"seed,omitempty"`
	Config            Config `json:"config"`
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the simulation logger.
func WithLogger(logger Logger) Option {
	return func(s *Simulation) { s.logger = logger }
}

// WithRunID names the run. Without it a random ID is assigned.
func WithRunID(id RunID) Option {
	return func(s *Simulation) { s.id = id }
}

// WithSource replaces the seeded random source. The recorded seed is
// then informational only.
func WithSource(src Source) Option {
	return func(s *Simulation) { s.src = src }
}

// WithNotifications publishes every captured frame through mgr to the
// named notifiers, or to all registered notifiers when none are named.
func WithNotifications(mgr *NotificationManager, notifierIDs ...string) Option {
	return func(s *Simulation) {
		s.notifier = mgr
		s.notifierIDs = notifierIDs
	}
}

// Simulation drives a tissue for a fixed number of steps and records a
// frame before each one. The engine itself is single-threaded; the mutex
// only lets readers observe frames while a background runner steps it.
type Simulation struct {
	mu     sync.RWMutex
	id     RunID
	params Params
	seed   int64
	src    Source
	tissue *Tissue
	frames []Frame
	logger Logger

	notifier    *NotificationManager
	notifierIDs []string

	stopCh    chan struct{}
	isRunning bool
	lastErr   error
}

// NewSimulation validates params, seeds the random source and performs
// initial cell placement.
func NewSimulation(params Params, opts ...Option) (*Simulation, error) {
	params.Config = params.Config.withDefaults()
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	s := &Simulation{
		params: params,
		logger: NewNoOpLogger(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = NewRunID()
	}
	s.logger = withRun(s.logger, s.id)

	if params.Seed != nil {
		s.seed = *params.Seed
	} else {
		s.seed = TimeSeed()
	}
	if s.src == nil {
		s.src = NewSource(s.seed)
	}

	t, err := NewTissue(params.Config, s.src)
	if err != nil {
		return nil, err
	}
	t.SetLogger(s.logger)
	if err := t.InitialiseCellPlacement(params.InitialPopulation); err != nil {
		return nil, err
	}
	s.tissue = t
	s.frames = make([]Frame, 0, params.TotalSteps)

	s.logger.Infof("Simulation created: steps=%d cells=%d seed=%d", params.TotalSteps, params.InitialPopulation, s.seed)
	return s, nil
}

// ID returns the run identifier.
func (s *Simulation) ID() RunID {
	return s.id
}

// Seed returns the seed the random source was built from.
func (s *Simulation) Seed() int64 {
	return s.seed
}

// Params returns the construction parameters with config defaults applied.
func (s *Simulation) Params() Params {
	return s.params
}

// Tissue exposes the underlying tissue. Callers must not step it directly
// while the simulation is running in the background.
func (s *Simulation) Tissue() *Tissue {
	return s.tissue
}

// Done reports whether every requested step has run.
func (s *Simulation) Done() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done()
}

func (s *Simulation) done() bool {
	return len(s.frames) >= s.params.TotalSteps
}

// StepsTaken returns the number of frames captured so far.
func (s *Simulation) StepsTaken() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// Population returns the current number of cells.
func (s *Simulation) Population() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tissue.Len()
}

// CountByType returns the current number of cells of each type.
func (s *Simulation) CountByType() map[CellType]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tissue.CountByType()
}

// Step captures the current frame and advances the tissue by one step.
func (s *Simulation) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step()
}

func (s *Simulation) step() error {
	if s.done() {
		return ErrSimulationComplete
	}

	frame := CaptureFrame(s.tissue, len(s.frames))
	s.frames = append(s.frames, frame)
	if s.notifier != nil {
		s.notifier.Enqueue(NewFrameEvent(s.id, frame), s.notifierIDs...)
	}

	if err := s.tissue.Step(); err != nil {
		s.lastErr = err
		s.logger.Errorf("Step %d failed: %v", frame.Step, err)
		return err
	}
	return nil
}

// Run steps until every requested step has run, returning the frame
// history. Cancellation is honored between steps.
func (s *Simulation) Run(ctx context.Context) ([]Frame, error) {
	start := time.Now()
	for !s.Done() {
		if err := s.Step(ctx); err != nil {
			return s.Frames(), fmt.Errorf("run %s: %w", s.id, err)
		}
	}
	s.logger.Infof("Simulation finished: steps=%d population=%d elapsed=%v", s.StepsTaken(), s.Population(), time.Since(start))
	return s.Frames(), nil
}

// Frames returns the captured frames in step order. Frames are immutable
// once captured; the returned slice is a copy.
func (s *Simulation) Frames() []Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Frame returns the frame captured before step t.
func (s *Simulation) Frame(t int) (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t < 0 || t >= len(s.frames) {
		return Frame{}, false
	}
	return s.frames[t], true
}

// History returns the run parameters and frames captured so far.
func (s *Simulation) History() History {
	return History{
		RunID:             s.id,
		Seed:              s.seed,
		TotalSteps:        s.params.TotalSteps,
		InitialPopulation: s.params.InitialPopulation,
		Config:            s.params.Config,
		Frames:            s.Frames(),
	}
}

// Err returns the error that stopped a background run, if any.
func (s *Simulation) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// IsRunning reports whether a background runner is active.
func (s *Simulation) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start steps the simulation in a goroutine every interval until it is
// done, fails, or Stop is called. It can be called again right after
// stopping; a runner that was stopped never steps again.
func (s *Simulation) Start(interval time.Duration) {
	s.mu.Lock()
	if s.isRunning || s.done() {
		s.mu.Unlock()
		return
	}
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.isRunning = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				select {
				case <-stopCh:
					s.mu.Unlock()
					return
				default:
				}
				err := s.step()
				finished := err != nil || s.done()
				if finished {
					s.isRunning = false
				}
				s.mu.Unlock()
				if finished {
					return
				}
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop halts a background runner started with Start. The simulation is
// no longer running once Stop returns.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	close(s.stopCh)
	s.isRunning = false
}
