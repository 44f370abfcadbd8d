package tissue

import (
	"errors"
	"fmt"
	"math"
)

// ErrPositionOccupied is returned when a cell is added onto an occupied position.
var ErrPositionOccupied = errors.New("position already occupied")

// Tissue owns the cell population and the indexes that mirror it. It is
// mutated only through AddCell, InitialiseCellPlacement and Step.
type Tissue struct {
	cfg       Config
	draw      typeDraw
	cells     []Cell
	occupancy map[Position]int
	index     *NeighborhoodIndex
	rng       Source
	logger    Logger
	steps     int
}

// NewTissue creates an empty tissue driven by rng.
func NewTissue(cfg Config, rng Source) (*Tissue, error) {
	if rng == nil {
		return nil, errors.New("tissue: random source is required")
	}
	cfg = cfg.withDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Tissue{
		cfg:       cfg,
		draw:      newTypeDraw(cfg.TypeProportions),
		occupancy: make(map[Position]int),
		index:     NewNeighborhoodIndex(cfg.BucketSize),
		rng:       rng,
		logger:    NewNoOpLogger(),
	}, nil
}

// SetLogger sets the logger used by the tissue.
func (t *Tissue) SetLogger(logger Logger) {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	t.logger = logger
}

// Config returns the effective configuration, defaults applied.
func (t *Tissue) Config() Config {
	return t.cfg
}

// Len returns the population size.
func (t *Tissue) Len() int {
	return len(t.cells)
}

// Steps returns the number of completed steps.
func (t *Tissue) Steps() int {
	return t.steps
}

// Cells returns a copy of the population in population order.
func (t *Tissue) Cells() []Cell {
	out := make([]Cell, len(t.cells))
	copy(out, t.cells)
	return out
}

// Occupied reports whether any cell sits at p.
func (t *Tissue) Occupied(p Position) bool {
	_, ok := t.occupancy[p]
	return ok
}

// Neighborhood returns the occupied positions within radius of center,
// excluding center.
func (t *Tissue) Neighborhood(center Position, radius float64) []Neighbor {
	return t.index.Query(center, radius)
}

// Coords returns the parallel coordinate and type sequences of the population.
func (t *Tissue) Coords() (xs, ys []int, types []CellType) {
	xs = make([]int, len(t.cells))
	ys = make([]int, len(t.cells))
	types = make([]CellType, len(t.cells))
	for i, c := range t.cells {
		xs[i], ys[i], types[i] = c.X, c.Y, c.Type
	}
	return xs, ys, types
}

// CountByType returns the number of cells of each type present.
func (t *Tissue) CountByType() map[CellType]int {
	counts := make(map[CellType]int)
	for _, c := range t.cells {
		counts[c.Type]++
	}
	return counts
}

// AddCell appends a cell of type ct at pos using the configured parameters for ct.
func (t *Tissue) AddCell(ct CellType, pos Position) error {
	if !ct.Valid() {
		return fmt.Errorf("add cell: unknown cell type %d", int(ct))
	}
	if t.Occupied(pos) {
		return fmt.Errorf("add cell at (%d,%d): %w", pos.X, pos.Y, ErrPositionOccupied)
	}
	t.appendCell(NewCell(ct, pos, t.cfg.ParamsFor(ct)))
	return nil
}

func (t *Tissue) appendCell(c Cell) {
	t.occupancy[c.Position] = len(t.cells)
	t.index.Insert(c.Position, c.Type)
	t.cells = append(t.cells, c)
}

// InitialiseCellPlacement scatters n cells at distinct lattice positions
// drawn from a Gaussian centered on the origin with standard deviation
// SpreadFactor*n, resampling on collision. Each placed cell gets a type
// from the weighted draw over TypeProportions.
func (t *Tissue) InitialiseCellPlacement(n int) error {
	if n <= 0 {
		return &ConfigError{Field: "initial_population", Err: fmt.Errorf("must be positive, got %d", n)}
	}

	stdev := t.cfg.SpreadFactor * float64(n)
	maxAttempts := t.cfg.PlacementAttemptsPerCell * n
	if maxAttempts < t.cfg.PlacementAttemptsMin {
		maxAttempts = t.cfg.PlacementAttemptsMin
	}

	placed, attempts := 0, 0
	for placed < n {
		if attempts >= maxAttempts {
			return &ConfigError{
				Field: "spread_factor",
				Err: fmt.Errorf("%w: placed %d of %d cells in %d attempts (stdev %.3g too small for the population)",
					ErrPlacementExhausted, placed, n, attempts, stdev),
			}
		}
		attempts++

		pos := Position{
			X: int(math.RoundToEven(t.rng.NormFloat64() * stdev)),
			Y: int(math.RoundToEven(t.rng.NormFloat64() * stdev)),
		}
		if t.Occupied(pos) {
			continue
		}
		ct := t.draw.pick(t.rng.Float64())
		t.appendCell(NewCell(ct, pos, t.cfg.ParamsFor(ct)))
		placed++
	}

	t.logger.Infof("Initial placement: cells=%d attempts=%d stdev=%.3g", n, attempts, stdev)
	return nil
}

// Step advances every cell once, in population order. Each cell queries
// its neighborhood, proposes and resolves a move, commits it if the
// target is free, then proposes a division and commits the child if its
// position is free. A cell sees the commits of every cell processed
// before it in the same step. Children appended during the step are first
// processed in the next one.
func (t *Tissue) Step() error {
	step := t.steps
	if err := t.CheckInvariants(); err != nil {
		return stamp(err, step)
	}

	n := len(t.cells)
	moved, born := 0, 0
	for i := 0; i < n; i++ {
		m, b, err := t.updateCell(i)
		if err != nil {
			return stamp(fmt.Errorf("cell %d: %w", i, err), step)
		}
		if m {
			moved++
		}
		if b {
			born++
		}
	}

	if err := t.CheckInvariants(); err != nil {
		return stamp(err, step)
	}
	t.steps++
	t.logger.Debugf("Step %d: population=%d moved=%d born=%d", step, len(t.cells), moved, born)
	return nil
}

// updateCell runs the query/resolve/commit sequence for one cell. The
// occupancy bijection holds again when it returns.
func (t *Tissue) updateCell(i int) (moved, born bool, err error) {
	c := t.cells[i]
	nbhd := t.index.Query(c.Position, c.NeighborhoodRadius)

	off, err := c.ProposeMove(t.rng.Float64())
	if err != nil {
		return false, false, err
	}
	target := c.FindBestMove(c.Position.Add(off), nbhd)

	if target != c.Position && !t.Occupied(target) {
		if err := t.commitMove(i, target); err != nil {
			return false, false, err
		}
		moved = true
	}

	div, err := t.cells[i].ProposeDivision(t.rng.Float64())
	if err != nil {
		return moved, false, err
	}
	if div.Occurred && !t.Occupied(div.Position) {
		t.appendCell(NewCell(div.Type, div.Position, t.cfg.ParamsFor(div.Type)))
		born = true
	}
	return moved, born, nil
}

func (t *Tissue) commitMove(i int, to Position) error {
	c := &t.cells[i]
	from := c.Position
	if idx, ok := t.occupancy[from]; !ok || idx != i {
		return &InvariantError{Step: -1, Detail: fmt.Sprintf("occupancy lost cell %d at (%d,%d)", i, from.X, from.Y)}
	}
	if !t.index.Move(from, to, c.Type) {
		return &InvariantError{Step: -1, Detail: fmt.Sprintf("neighborhood index lost (%d,%d)", from.X, from.Y)}
	}
	delete(t.occupancy, from)
	t.occupancy[to] = i
	c.Position = to
	return nil
}

// CheckInvariants verifies that occupancy and the neighborhood index are
// in one-to-one correspondence with the population's positions.
func (t *Tissue) CheckInvariants() error {
	if len(t.occupancy) != len(t.cells) {
		return &InvariantError{Step: -1, Detail: fmt.Sprintf("occupancy has %d entries for %d cells", len(t.occupancy), len(t.cells))}
	}
	if t.index.Len() != len(t.cells) {
		return &InvariantError{Step: -1, Detail: fmt.Sprintf("neighborhood index has %d entries for %d cells", t.index.Len(), len(t.cells))}
	}
	for i, c := range t.cells {
		idx, ok := t.occupancy[c.Position]
		if !ok {
			return &InvariantError{Step: -1, Detail: fmt.Sprintf("cell %d at (%d,%d) missing from occupancy", i, c.X, c.Y)}
		}
		if idx != i {
			return &InvariantError{Step: -1, Detail: fmt.Sprintf("cells %d and %d share (%d,%d)", idx, i, c.X, c.Y)}
		}
	}
	return nil
}

// stamp records the step number on any InvariantError in err's chain.
func stamp(err error, step int) error {
	var ie *InvariantError
	if errors.As(err, &ie) && ie.Step < 0 {
		ie.Step = step
	}
	return err
}
