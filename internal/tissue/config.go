package tissue

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Config describes a tissue: which types are seeded in what proportion,
// how each type behaves, and how the initial population is scattered.
type Config struct {
	Name string `json:"name,omitempty"`

	// TypeProportions weights the categorical draw that assigns a type to
	// each initially placed cell. Weights need not sum to one.
	TypeProportions map[CellType]float64 `json:"type_proportions"`

	// CellTypes overrides the behavioral parameters per type. Types not
	// listed use DefaultCellParams.
	CellTypes map[CellType]CellParams `json:"cell_types,omitempty"`

	// SpreadFactor scales the standard deviation of the initial Gaussian
	// scatter: stdev = SpreadFactor * initial population.
	SpreadFactor float64 `json:"spread_factor"`

	// BucketSize is the edge of a neighborhood index bucket. Zero means
	// the largest configured neighborhood radius.
	BucketSize int `json:"bucket_size,omitempty"`

	PlacementAttemptsPerCell int `json:"placement_attempts_per_cell,omitempty"`
	PlacementAttemptsMin     int `json:"placement_attempts_min,omitempty"`
}

const (
	defaultSpreadFactor             = 0.25
	defaultPlacementAttemptsPerCell = 100
	defaultPlacementAttemptsMin     = 1000
)

// DefaultConfig returns the reference configuration: equal quarters of
// TypeA..TypeD, default cell parameters, spread of a quarter of the
// population size.
func DefaultConfig() Config {
	return Config{
		Name: "default",
		TypeProportions: map[CellType]float64{
			TypeA: 0.25,
			TypeB: 0.25,
			TypeC: 0.25,
			TypeD: 0.25,
		},
		SpreadFactor:             defaultSpreadFactor,
		PlacementAttemptsPerCell: defaultPlacementAttemptsPerCell,
		PlacementAttemptsMin:     defaultPlacementAttemptsMin,
	}
}

// SingleTypeConfig seeds every cell as t with the given parameters.
func SingleTypeConfig(t CellType, params CellParams) Config {
	cfg := DefaultConfig()
	cfg.Name = "single-" + t.String()
	cfg.TypeProportions = map[CellType]float64{t: 1}
	cfg.CellTypes = map[CellType]CellParams{t: params}
	return cfg
}

// ParamsFor returns the behavioral parameters of type t.
func (c Config) ParamsFor(t CellType) CellParams {
	if p, ok := c.CellTypes[t]; ok {
		return p
	}
	return DefaultCellParams
}

// withDefaults fills zero-valued tunables.
func (c Config) withDefaults() Config {
	if len(c.TypeProportions) == 0 {
		c.TypeProportions = DefaultConfig().TypeProportions
	}
	if c.SpreadFactor == 0 {
		c.SpreadFactor = defaultSpreadFactor
	}
	if c.PlacementAttemptsPerCell == 0 {
		c.PlacementAttemptsPerCell = defaultPlacementAttemptsPerCell
	}
	if c.PlacementAttemptsMin == 0 {
		c.PlacementAttemptsMin = defaultPlacementAttemptsMin
	}
	if c.BucketSize == 0 {
		c.BucketSize = c.maxRadiusBucket()
	}
	return c
}

func (c Config) maxRadiusBucket() int {
	maxRadius := DefaultCellParams.NeighborhoodRadius
	for _, t := range AllCellTypes {
		if r := c.ParamsFor(t).NeighborhoodRadius; r > maxRadius {
			maxRadius = r
		}
	}
	if maxRadius > MaxNeighborhoodRadius {
		maxRadius = MaxNeighborhoodRadius
	}
	size := int(math.Ceil(maxRadius))
	if size < 1 {
		size = 1
	}
	return size
}

// typeDraw is the cumulative partition used to pick a type for a new cell.
type typeDraw struct {
	types []CellType
	upper []float64
}

func newTypeDraw(proportions map[CellType]float64) typeDraw {
	total := 0.0
	for _, t := range AllCellTypes {
		if w := proportions[t]; w > 0 {
			total += w
		}
	}
	var d typeDraw
	cum := 0.0
	for _, t := range AllCellTypes {
		w := proportions[t]
		if w <= 0 {
			continue
		}
		cum += w
		d.types = append(d.types, t)
		d.upper = append(d.upper, cum/total)
	}
	return d
}

func (d typeDraw) pick(r float64) CellType {
	for i, u := range d.upper {
		if r < u {
			return d.types[i]
		}
	}
	// cum/total can land a hair under 1
	return d.types[len(d.types)-1]
}

// LoadConfigFile reads and validates a JSON tissue config.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	cfg = cfg.withDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}
