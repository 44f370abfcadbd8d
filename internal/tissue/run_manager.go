package tissue

import (
	"fmt"
	"sort"
	"sync"
)

// RunManager manages multiple simulations, each isolated from others
type RunManager struct {
	mu     sync.RWMutex
	runs   map[RunID]*Simulation
	logger Logger
}

// NewRunManager creates a new run manager
func NewRunManager() *RunManager {
	return NewRunManagerWithLogger(NewNoOpLogger())
}

// NewRunManagerWithLogger creates a run manager whose simulations log through logger
func NewRunManagerWithLogger(logger Logger) *RunManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &RunManager{
		runs:   make(map[RunID]*Simulation),
		logger: logger,
	}
}

// CreateRun builds a simulation and registers it. When id is empty a
// random one is assigned. Returns an error if the id is already taken.
func (rm *RunManager) CreateRun(id RunID, params Params, opts ...Option) (*Simulation, error) {
	if id == "" {
		id = NewRunID()
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.runs[id]; exists {
		return nil, fmt.Errorf("run with id %s already exists", id)
	}

	opts = append([]Option{WithLogger(rm.logger), WithRunID(id)}, opts...)
	sim, err := NewSimulation(params, opts...)
	if err != nil {
		return nil, err
	}
	rm.runs[id] = sim
	return sim, nil
}

// GetRun retrieves a simulation by ID
func (rm *RunManager) GetRun(id RunID) (*Simulation, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	sim, exists := rm.runs[id]
	return sim, exists
}

// DeleteRun stops and removes a simulation
func (rm *RunManager) DeleteRun(id RunID) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	sim, exists := rm.runs[id]
	if !exists {
		return fmt.Errorf("run with id %s does not exist", id)
	}

	sim.Stop()
	delete(rm.runs, id)
	return nil
}

// ListRuns returns all run IDs in lexical order
func (rm *RunManager) ListRuns() []RunID {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	ids := make([]RunID, 0, len(rm.runs))
	for id := range rm.runs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StopAll stops every background runner
func (rm *RunManager) StopAll() {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	for _, sim := range rm.runs {
		sim.Stop()
	}
}
