package tissue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Frame is a point-in-time capture of a tissue's population, taken
// before the step with the same number. X, Y and Types are parallel.
type Frame struct {
	Step  int        `json:"step"`
	X     []int      `json:"x"`
	Y     []int      `json:"y"`
	Types []CellType `json:"types"`
}

// Len returns the population size recorded in the frame.
func (f Frame) Len() int {
	return len(f.Types)
}

// CaptureFrame snapshots the current population of t.
func CaptureFrame(t *Tissue, step int) Frame {
	xs, ys, types := t.Coords()
	return Frame{Step: step, X: xs, Y: ys, Types: types}
}

// History is a complete run: its construction parameters and every frame.
type History struct {
	RunID             RunID   `json:"run_id"`
	Seed              int64   `json:"seed"`
	TotalSteps        int     `json:"total_steps"`
	InitialPopulation int     `json:"initial_population"`
	Config            Config  `json:"config"`
	Frames            []Frame `json:"frames"`
}

// ValidateFrame performs validation checks on a frame.
// It verifies that:
//   - X, Y and Types have equal lengths
//   - Every type is a declared cell type
//   - No two cells share a position
func ValidateFrame(f Frame) error {
	if len(f.X) != len(f.Types) || len(f.Y) != len(f.Types) {
		return fmt.Errorf("frame %d: coordinate lengths differ (x=%d y=%d types=%d)", f.Step, len(f.X), len(f.Y), len(f.Types))
	}

	seen := make(map[Position]int, len(f.Types))
	for i, t := range f.Types {
		if !t.Valid() {
			return fmt.Errorf("frame %d: cell %d has invalid type %d", f.Step, i, int(t))
		}
		p := Position{X: f.X[i], Y: f.Y[i]}
		if j, dup := seen[p]; dup {
			return fmt.Errorf("frame %d: cells %d and %d share position (%d,%d)", f.Step, j, i, p.X, p.Y)
		}
		seen[p] = i
	}
	return nil
}

// ValidateHistory validates every frame and the ordering between them:
// steps are consecutive from zero and the population never shrinks.
func ValidateHistory(h History) error {
	for i, f := range h.Frames {
		if f.Step != i {
			return fmt.Errorf("frame at index %d has step %d", i, f.Step)
		}
		if err := ValidateFrame(f); err != nil {
			return err
		}
		if i > 0 && f.Len() < h.Frames[i-1].Len() {
			return fmt.Errorf("population shrank from %d to %d at step %d", h.Frames[i-1].Len(), f.Len(), f.Step)
		}
	}
	return nil
}

// EncodeHistoryJSON encodes a run history to JSON format.
func EncodeHistoryJSON(h History) ([]byte, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	return data, nil
}

// DecodeHistoryJSON decodes a run history from JSON format.
func DecodeHistoryJSON(data []byte) (History, error) {
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return History{}, fmt.Errorf("failed to decode history: %w", err)
	}
	return h, nil
}

// SaveHistory writes h to path atomically (temp file then rename),
// creating the parent directory if needed.
func SaveHistory(path string, h History) error {
	data, err := EncodeHistoryJSON(h)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close history file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move history into place: %w", err)
	}
	return nil
}

// LoadHistory reads and validates a history written by SaveHistory.
func LoadHistory(path string) (History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return History{}, fmt.Errorf("reading history file: %w", err)
	}
	h, err := DecodeHistoryJSON(data)
	if err != nil {
		return History{}, err
	}
	if err := ValidateHistory(h); err != nil {
		return History{}, fmt.Errorf("validating history: %w", err)
	}
	return h, nil
}

// HistoryPath is the file name used for a run inside dir.
func HistoryPath(dir string, id RunID) string {
	return filepath.Join(dir, string(id)+".frames.json")
}
