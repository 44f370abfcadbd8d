package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/daniacca/chromasim/internal/tissue"
)

// ErrRunNotFound is returned when a run has no row in the store.
var ErrRunNotFound = errors.New("run not found")

// Store reads and writes run histories.
type Store struct {
	db *sql.DB
}

// RunSummary describes a stored run without its frames.
type RunSummary struct {
	RunID             tissue.RunID `json:"run_id"`
	Seed              int64        `json:"seed"`
	TotalSteps        int          `json:"total_steps"`
	InitialPopulation int          `json:"initial_population"`
	FramesStored      int          `json:"frames_stored"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveRun inserts or replaces the run row of h. Frames are not touched.
func (s *Store) SaveRun(ctx context.Context, h tissue.History) error {
	return saveRun(ctx, s.db, h)
}

func saveRun(ctx context.Context, ex execer, h tissue.History) error {
	cfgBytes, err := json.Marshal(h.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	query := `
		INSERT INTO runs (run_id, seed, total_steps, initial_population, config_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			seed=excluded.seed,
			total_steps=excluded.total_steps,
			initial_population=excluded.initial_population,
			config_json=excluded.config_json
	`
	_, err = ex.ExecContext(ctx, query,
		string(h.RunID), h.Seed, h.TotalSteps, h.InitialPopulation, string(cfgBytes), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", h.RunID, err)
	}
	return nil
}

// AppendFrame stores one frame of run id, replacing any frame already
// stored for that step.
func (s *Store) AppendFrame(ctx context.Context, id tissue.RunID, f tissue.Frame) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := appendFrame(ctx, tx, id, f); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func appendFrame(ctx context.Context, tx *sql.Tx, id tissue.RunID, f tissue.Frame) error {
	if err := tissue.ValidateFrame(f); err != nil {
		return fmt.Errorf("refusing invalid frame: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM frame_cells WHERE run_id = ? AND step = ?`, string(id), f.Step); err != nil {
		return fmt.Errorf("failed to clear frame %d: %w", f.Step, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO frames (run_id, step, population) VALUES (?, ?, ?)`,
		string(id), f.Step, f.Len(),
	); err != nil {
		return fmt.Errorf("failed to append frame %d: %w", f.Step, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO frame_cells (run_id, step, idx, x, y, cell_type) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cell insert: %w", err)
	}
	defer stmt.Close()

	for i := range f.Types {
		if _, err := stmt.ExecContext(ctx, string(id), f.Step, i, f.X[i], f.Y[i], f.Types[i].String()); err != nil {
			return fmt.Errorf("failed to append cell %d of frame %d: %w", i, f.Step, err)
		}
	}
	return nil
}

// SaveHistory stores a complete run, its row and every frame, in one transaction.
func (s *Store) SaveHistory(ctx context.Context, h tissue.History) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := saveRun(ctx, tx, h); err != nil {
		tx.Rollback()
		return err
	}
	for _, f := range h.Frames {
		if err := appendFrame(ctx, tx, h.RunID, f); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadHistory reads a run and all of its frames in step order.
func (s *Store) LoadHistory(ctx context.Context, id tissue.RunID) (tissue.History, error) {
	h := tissue.History{RunID: id}
	var cfgJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT seed, total_steps, initial_population, config_json FROM runs WHERE run_id = ?`, string(id),
	).Scan(&h.Seed, &h.TotalSteps, &h.InitialPopulation, &cfgJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tissue.History{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return tissue.History{}, err
	}
	if err := json.Unmarshal([]byte(cfgJSON), &h.Config); err != nil {
		return tissue.History{}, fmt.Errorf("failed to decode config of run %s: %w", id, err)
	}

	frames, err := s.loadFrames(ctx, id, -1)
	if err != nil {
		return tissue.History{}, err
	}
	h.Frames = frames
	return h, nil
}

// LoadFrame reads the frame captured before step of run id.
func (s *Store) LoadFrame(ctx context.Context, id tissue.RunID, step int) (tissue.Frame, bool, error) {
	frames, err := s.loadFrames(ctx, id, step)
	if err != nil {
		return tissue.Frame{}, false, err
	}
	if len(frames) == 0 {
		return tissue.Frame{}, false, nil
	}
	return frames[0], true, nil
}

// loadFrames reads every frame of id, or only step when step >= 0.
func (s *Store) loadFrames(ctx context.Context, id tissue.RunID, step int) ([]tissue.Frame, error) {
	frameQuery := `SELECT step, population FROM frames WHERE run_id = ? ORDER BY step ASC`
	cellQuery := `SELECT step, x, y, cell_type FROM frame_cells WHERE run_id = ? ORDER BY step ASC, idx ASC`
	args := []any{string(id)}
	if step >= 0 {
		frameQuery = `SELECT step, population FROM frames WHERE run_id = ? AND step = ?`
		cellQuery = `SELECT step, x, y, cell_type FROM frame_cells WHERE run_id = ? AND step = ? ORDER BY idx ASC`
		args = append(args, step)
	}

	rows, err := s.db.QueryContext(ctx, frameQuery, args...)
	if err != nil {
		return nil, err
	}
	var frames []tissue.Frame
	byStep := make(map[int]int)
	for rows.Next() {
		var f tissue.Frame
		var population int
		if err := rows.Scan(&f.Step, &population); err != nil {
			rows.Close()
			return nil, err
		}
		f.X = make([]int, 0, population)
		f.Y = make([]int, 0, population)
		f.Types = make([]tissue.CellType, 0, population)
		byStep[f.Step] = len(frames)
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	cells, err := s.db.QueryContext(ctx, cellQuery, args...)
	if err != nil {
		return nil, err
	}
	defer cells.Close()
	for cells.Next() {
		var st, x, y int
		var typeName string
		if err := cells.Scan(&st, &x, &y, &typeName); err != nil {
			return nil, err
		}
		ct, err := tissue.ParseCellType(typeName)
		if err != nil {
			return nil, err
		}
		i, ok := byStep[st]
		if !ok {
			return nil, fmt.Errorf("cells stored for missing frame %d of run %s", st, id)
		}
		frames[i].X = append(frames[i].X, x)
		frames[i].Y = append(frames[i].Y, y)
		frames[i].Types = append(frames[i].Types, ct)
	}
	return frames, cells.Err()
}

// ListRuns returns a summary of every stored run.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	query := `
		SELECT r.run_id, r.seed, r.total_steps, r.initial_population, r.created_at,
			(SELECT COUNT(*) FROM frames f WHERE f.run_id = r.run_id)
		FROM runs r ORDER BY r.created_at ASC, r.run_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var id string
		var createdAt int64
		if err := rows.Scan(&id, &rs.Seed, &rs.TotalSteps, &rs.InitialPopulation, &createdAt, &rs.FramesStored); err != nil {
			return nil, err
		}
		rs.RunID = tissue.RunID(id)
		rs.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, rs)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its frames.
func (s *Store) DeleteRun(ctx context.Context, id tissue.RunID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM frame_cells WHERE run_id = ?`,
		`DELETE FROM frames WHERE run_id = ?`,
		`DELETE FROM runs WHERE run_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, string(id)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to delete run %s: %w", id, err)
		}
	}
	return tx.Commit()
}
