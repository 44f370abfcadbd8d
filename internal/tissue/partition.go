package tissue

import "math"

// branch is one interval of a cumulative probability partition. A draw r
// selects the first branch whose upper bound is strictly greater than r.
type branch struct {
	upper  float64
	offset Offset
}

// partition is an ordered list of branches over [0, total). Draws at or
// above the last upper bound fall through to the caller's residual case.
type partition []branch

// directionalPartition splits [0, p) into four equal intervals ordered
// up, right, down, left.
func directionalPartition(p float64) partition {
	quarter := p / 4
	return partition{
		{upper: quarter, offset: Up},
		{upper: p / 2, offset: Right},
		{upper: p/2 + quarter, offset: Down},
		{upper: p, offset: Left},
	}
}

func (pt partition) total() float64 {
	if len(pt) == 0 {
		return 0
	}
	return pt[len(pt)-1].upper
}

func (pt partition) pick(r float64) (Offset, bool) {
	for _, b := range pt {
		if r < b.upper {
			return b.offset, true
		}
	}
	return Stay, false
}

func validDraw(r float64) bool {
	return !math.IsNaN(r) && r >= 0 && r < 1
}
