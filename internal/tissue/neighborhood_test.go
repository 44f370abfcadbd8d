package tissue

import (
	"math"
	"math/rand"
	"sort"
	"testing"
)

func TestFloorDiv(t *testing.T) {
	tests := []struct{ a, b, want int }{
		{0, 20, 0},
		{19, 20, 0},
		{20, 20, 1},
		{-1, 20, -1},
		{-20, 20, -1},
		{-21, 20, -2},
	}
	for _, tt := range tests {
		if got := floorDiv(tt.a, tt.b); got != tt.want {
			t.Errorf("floorDiv(%d, %d): expected %d, got %d", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestNeighborhoodIndex_Query(t *testing.T) {
	ni := NewNeighborhoodIndex(20)
	points := []Neighbor{
		{Position: Position{X: 0, Y: 0}, Type: TypeA},
		{Position: Position{X: 20, Y: 0}, Type: TypeB},
		{Position: Position{X: -20, Y: 0}, Type: TypeC},
		{Position: Position{X: 15, Y: 15}, Type: TypeD},
		{Position: Position{X: -3, Y: -4}, Type: Base},
	}
	for _, p := range points {
		ni.Insert(p.Position, p.Type)
	}
	if ni.Len() != len(points) {
		t.Fatalf("Expected %d entries, got %d", len(points), ni.Len())
	}

	got := ni.Query(Position{}, 20)
	if len(got) != 3 {
		t.Fatalf("Expected 3 neighbors within radius 20, got %d: %+v", len(got), got)
	}
	seen := make(map[Position]CellType)
	for _, n := range got {
		seen[n.Position] = n.Type
	}
	if _, ok := seen[Position{}]; ok {
		t.Error("Expected query center to be excluded")
	}
	if seen[Position{X: 20, Y: 0}] != TypeB {
		t.Error("Expected boundary point at distance exactly 20 to be included")
	}
	if seen[Position{X: -20, Y: 0}] != TypeC {
		t.Error("Expected negative-coordinate point to be included")
	}
	if _, ok := seen[Position{X: 15, Y: 15}]; ok {
		t.Error("Expected point at distance 21.2 to be excluded")
	}

	if got := ni.Query(Position{}, -1); got != nil {
		t.Errorf("Expected nil for negative radius, got %+v", got)
	}
}

func TestNeighborhoodIndex_RemoveAndMove(t *testing.T) {
	ni := NewNeighborhoodIndex(4)
	ni.Insert(Position{X: 1, Y: 1}, TypeA)
	ni.Insert(Position{X: 2, Y: 1}, TypeB)

	if ni.Remove(Position{X: 9, Y: 9}) {
		t.Error("Expected Remove of absent position to report false")
	}
	if !ni.Move(Position{X: 1, Y: 1}, Position{X: -7, Y: 3}, TypeA) {
		t.Fatal("Expected Move to succeed")
	}
	if ni.Len() != 2 {
		t.Errorf("Expected 2 entries after move, got %d", ni.Len())
	}

	got := ni.Query(Position{X: -7, Y: 2}, 1)
	if len(got) != 1 || got[0].Position != (Position{X: -7, Y: 3}) || got[0].Type != TypeA {
		t.Errorf("Expected moved entry at (-7,3), got %+v", got)
	}
	if ni.Move(Position{X: 1, Y: 1}, Position{}, TypeA) {
		t.Error("Expected Move from a vacated position to fail")
	}

	if !ni.Remove(Position{X: 2, Y: 1}) {
		t.Error("Expected Remove to report true")
	}
	if ni.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", ni.Len())
	}
}

func bruteForceQuery(points []Position, center Position, radius float64) []Position {
	var out []Position
	for _, p := range points {
		if p != center && center.Distance(p) <= radius {
			out = append(out, p)
		}
	}
	return out
}

func sortPositions(ps []Position) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})
}

func TestNeighborhoodIndex_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ni := NewNeighborhoodIndex(8)
	occupied := make(map[Position]bool)
	var points []Position
	for len(points) < 400 {
		p := Position{X: rng.Intn(121) - 60, Y: rng.Intn(121) - 60}
		if occupied[p] {
			continue
		}
		occupied[p] = true
		points = append(points, p)
		ni.Insert(p, Base)
	}

	for _, radius := range []float64{0, 1, 5.5, 20, 200} {
		for i := 0; i < 25; i++ {
			center := points[rng.Intn(len(points))]
			if i%2 == 1 {
				center = Position{X: rng.Intn(161) - 80, Y: rng.Intn(161) - 80}
			}

			var got []Position
			for _, n := range ni.Query(center, radius) {
				got = append(got, n.Position)
			}
			want := bruteForceQuery(points, center, radius)
			sortPositions(got)
			sortPositions(want)

			if len(got) != len(want) {
				t.Fatalf("radius %v center %+v: expected %d neighbors, got %d", radius, center, len(want), len(got))
			}
			for k := range want {
				if got[k] != want[k] {
					t.Fatalf("radius %v center %+v: mismatch at %d: expected %+v, got %+v", radius, center, k, want[k], got[k])
				}
			}
		}
	}
}

func TestNeighborhoodIndex_QueryDeterministic(t *testing.T) {
	ni := NewNeighborhoodIndex(5)
	for x := -10; x <= 10; x += 3 {
		for y := -10; y <= 10; y += 4 {
			ni.Insert(Position{X: x, Y: y}, TypeA)
		}
	}
	first := ni.Query(Position{X: 1, Y: 1}, 9)
	second := ni.Query(Position{X: 1, Y: 1}, 9)
	if len(first) != len(second) {
		t.Fatalf("Expected equal lengths, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Expected identical order, differ at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestNeighborhoodIndex_QueryHugeRadius(t *testing.T) {
	ni := NewNeighborhoodIndex(1)
	ni.Insert(Position{X: 0, Y: 0}, TypeA)
	ni.Insert(Position{X: 5, Y: 0}, TypeA)
	ni.Insert(Position{X: -7, Y: 3}, TypeC)

	for _, radius := range []float64{MaxNeighborhoodRadius, 1e19, math.Inf(1)} {
		got := ni.Query(Position{}, radius)
		if len(got) != 2 {
			t.Errorf("radius %g: expected 2 neighbors, got %v", radius, got)
		}
	}
}

func TestTissue_NeighborhoodWithHugeRadius(t *testing.T) {
	params := CellParams{MovementProbability: 1, NeighborhoodRadius: MaxNeighborhoodRadius}
	ts, err := NewTissue(SingleTypeConfig(TypeA, params), &scriptedSource{})
	if err != nil {
		t.Fatalf("NewTissue failed: %v", err)
	}
	if err := ts.AddCell(TypeA, Position{X: 0, Y: 0}); err != nil {
		t.Fatalf("AddCell failed: %v", err)
	}
	if err := ts.AddCell(TypeA, Position{X: 5, Y: 0}); err != nil {
		t.Fatalf("AddCell failed: %v", err)
	}

	nbhd := ts.Neighborhood(Position{}, params.NeighborhoodRadius)
	if len(nbhd) != 1 || nbhd[0].Position != (Position{X: 5, Y: 0}) {
		t.Errorf("Expected the cell at (5,0), got %v", nbhd)
	}
}
