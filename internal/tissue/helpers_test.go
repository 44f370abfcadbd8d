package tissue

// scriptedSource replays fixed draws. Once a script runs out it returns
// 0.999999, which never divides, and a zero normal.
type scriptedSource struct {
	floats []float64
	norms  []float64
	fi, ni int
}

func (s *scriptedSource) Float64() float64 {
	if s.fi >= len(s.floats) {
		return 0.999999
	}
	v := s.floats[s.fi]
	s.fi++
	return v
}

func (s *scriptedSource) NormFloat64() float64 {
	if s.ni >= len(s.norms) {
		return 0
	}
	v := s.norms[s.ni]
	s.ni++
	return v
}

func int64Ptr(v int64) *int64 {
	return &v
}

// diffusionOnly is a config whose cells never interact and never divide.
func diffusionOnly() Config {
	return SingleTypeConfig(Base, CellParams{
		MovementProbability: 1,
		DivisionProbability: 0,
		NeighborhoodRadius:  20,
	})
}
