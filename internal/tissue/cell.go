package tissue

// CellParams holds the per-type behavioral parameters of a cell.
type CellParams struct {
	MovementProbability float64 `json:"movement_probability"`
	DivisionProbability float64 `json:"division_probability"`
	NeighborhoodRadius  float64 `json:"neighborhood_radius"`
}

// DefaultCellParams are the reference parameters shared by every type.
var DefaultCellParams = CellParams{
	MovementProbability: 1,
	DivisionProbability: 0.007,
	NeighborhoodRadius:  20,
}

// Cell is a single pigment cell. Its identity is its index in the tissue
// population; only the tissue mutates its position.
type Cell struct {
	Type CellType `json:"type"`
	Position
	CellParams
}

// NewCell creates a cell of type t at pos.
func NewCell(t CellType, pos Position, params CellParams) Cell {
	return Cell{
		Type:       t,
		Position:   pos,
		CellParams: params,
	}
}

// Division is the outcome of a division proposal.
type Division struct {
	Occurred bool
	Position Position
	Type     CellType
}

// ProposeMove maps a uniform draw r in [0,1) to a unit offset. The first
// MovementProbability of the sample space is split evenly between up,
// right, down and left; the residual mass means no move.
func (c Cell) ProposeMove(r float64) (Offset, error) {
	if !validDraw(r) {
		return Stay, invariantf(-1, "movement draw %v outside [0,1)", r)
	}
	pt := directionalPartition(c.MovementProbability)
	if off, ok := pt.pick(r); ok {
		return off, nil
	}
	if r >= pt.total() {
		return Stay, nil
	}
	return Stay, invariantf(-1, "movement partition has no branch for draw %v (p=%v)", r, c.MovementProbability)
}

// ProposeDivision maps a uniform draw r in [0,1) to a division outcome.
// Division occurs iff r < DivisionProbability; the child goes in the
// direction selected by the same four-way partition scaled to
// DivisionProbability and inherits the parent's type.
func (c Cell) ProposeDivision(r float64) (Division, error) {
	if !validDraw(r) {
		return Division{}, invariantf(-1, "division draw %v outside [0,1)", r)
	}
	if r >= c.DivisionProbability {
		return Division{}, nil
	}
	off, ok := directionalPartition(c.DivisionProbability).pick(r)
	if !ok {
		return Division{}, invariantf(-1, "division partition has no branch for draw %v (p=%v)", r, c.DivisionProbability)
	}
	return Division{
		Occurred: true,
		Position: c.Position.Add(off),
		Type:     c.Type,
	}, nil
}

// resolveOrder is the evaluation order of FindBestMove. Ties go to the
// earliest entry.
var resolveOrder = []Offset{Up, Down, Right, Left}

// FindBestMove refines a diffusion proposal using the cell's energy.
// With no neighbors the proposal is returned unchanged. Otherwise the
// energy is evaluated at the four cardinal neighbors of the proposal; if
// any of them is non-zero the minimizing one is returned, else the
// proposal stands.
func (c Cell) FindBestMove(proposed Position, nbhd []Neighbor) Position {
	if len(nbhd) == 0 {
		return proposed
	}

	best := proposed
	bestEnergy := 0.0
	anyNonZero := false
	for i, off := range resolveOrder {
		candidate := proposed.Add(off)
		e := Energy(c.Type, candidate, nbhd)
		if e != 0 {
			anyNonZero = true
		}
		if i == 0 || e < bestEnergy {
			best, bestEnergy = candidate, e
		}
	}
	if !anyNonZero {
		return proposed
	}
	return best
}
