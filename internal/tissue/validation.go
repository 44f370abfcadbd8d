package tissue

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError collects multiple validation issues
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid config: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "config validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) Addf(format string, v ...any) {
	e.Add(fmt.Sprintf(format, v...))
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

func isProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

// ValidateConfig performs comprehensive validation of a tissue Config.
// Zero-valued tunables are accepted; they are filled with defaults when
// the tissue is built.
func ValidateConfig(cfg Config) error {
	err := &ValidationError{}

	total := 0.0
	for t, w := range cfg.TypeProportions {
		if !t.Valid() {
			err.Addf("type_proportions: unknown cell type %d", int(t))
			continue
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			err.Addf("type_proportions[%s]: weight must be a finite non-negative number, got %v", t, w)
			continue
		}
		total += w
	}
	if len(cfg.TypeProportions) > 0 && total <= 0 {
		err.Add("type_proportions: at least one type must have a positive weight")
	}

	for t, p := range cfg.CellTypes {
		if !t.Valid() {
			err.Addf("cell_types: unknown cell type %d", int(t))
			continue
		}
		if !isProbability(p.MovementProbability) {
			err.Addf("cell_types[%s]: movement_probability must be in [0,1], got %v", t, p.MovementProbability)
		}
		if !isProbability(p.DivisionProbability) {
			err.Addf("cell_types[%s]: division_probability must be in [0,1], got %v", t, p.DivisionProbability)
		}
		if math.IsNaN(p.NeighborhoodRadius) || p.NeighborhoodRadius < 0 || p.NeighborhoodRadius > MaxNeighborhoodRadius {
			err.Addf("cell_types[%s]: neighborhood_radius must be in [0,%d], got %v", t, MaxNeighborhoodRadius, p.NeighborhoodRadius)
		}
	}

	if math.IsNaN(cfg.SpreadFactor) || math.IsInf(cfg.SpreadFactor, 0) || cfg.SpreadFactor < 0 {
		err.Addf("spread_factor must be a finite non-negative number, got %v", cfg.SpreadFactor)
	}
	if cfg.BucketSize < 0 {
		err.Addf("bucket_size must not be negative, got %d", cfg.BucketSize)
	}
	if cfg.PlacementAttemptsPerCell < 0 {
		err.Addf("placement_attempts_per_cell must not be negative, got %d", cfg.PlacementAttemptsPerCell)
	}
	if cfg.PlacementAttemptsMin < 0 {
		err.Addf("placement_attempts_min must not be negative, got %d", cfg.PlacementAttemptsMin)
	}

	if err.HasIssues() {
		return err
	}
	return nil
}

// ValidateParams checks the construction parameters of a simulation,
// including its tissue config.
func ValidateParams(p Params) error {
	err := &ValidationError{}
	if p.TotalSteps <= 0 {
		err.Addf("total_steps must be positive, got %d", p.TotalSteps)
	}
	if p.InitialPopulation <= 0 {
		err.Addf("initial_population must be positive, got %d", p.InitialPopulation)
	}
	if cfgErr := ValidateConfig(p.Config); cfgErr != nil {
		if ve, ok := cfgErr.(*ValidationError); ok {
			err.Issues = append(err.Issues, ve.Issues...)
		} else {
			err.Add(cfgErr.Error())
		}
	}
	if err.HasIssues() {
		return err
	}
	return nil
}
