package tissue

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Source supplies the random draws consumed by the engine. *rand.Rand
// satisfies it.
type Source interface {
	// Float64 returns a uniform draw in [0,1).
	Float64() float64
	// NormFloat64 returns a standard normal draw.
	NormFloat64() float64
}

// NewSource returns a deterministic source for seed.
func NewSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// TimeSeed is the seed used when the caller does not supply one.
func TimeSeed() int64 {
	return time.Now().UnixNano()
}

// RunID identifies a simulation run.
type RunID string

// NewRunID returns a fresh random run identifier.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}
