package tissue

import "math"

// Position is a point on the integer lattice.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Offset is a lattice displacement.
type Offset struct {
	DX int
	DY int
}

// Cardinal unit offsets.
var (
	Up    = Offset{DX: 0, DY: 1}
	Right = Offset{DX: 1, DY: 0}
	Down  = Offset{DX: 0, DY: -1}
	Left  = Offset{DX: -1, DY: 0}
	Stay  = Offset{}
)

// Add returns p displaced by o.
func (p Position) Add(o Offset) Position {
	return Position{X: p.X + o.DX, Y: p.Y + o.DY}
}

// Distance is the Euclidean distance between p and q.
func (p Position) Distance(q Position) float64 {
	return math.Hypot(float64(p.X-q.X), float64(p.Y-q.Y))
}

// Manhattan is the L1 distance between p and q.
func (p Position) Manhattan(q Position) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Neighbor is an occupied position seen by a neighborhood query.
type Neighbor struct {
	Position
	Type CellType `json:"type"`
}
