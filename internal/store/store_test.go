package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/daniacca/chromasim/internal/tissue"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "chromasim.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func runHistory(t *testing.T, id tissue.RunID, steps, cells int) tissue.History {
	t.Helper()
	seed := int64(17)
	sim, err := tissue.NewSimulation(tissue.Params{
		TotalSteps:        steps,
		InitialPopulation: cells,
		Seed:              &seed,
		Config:            tissue.DefaultConfig(),
	}, tissue.WithRunID(id))
	if err != nil {
		t.Fatalf("NewSimulation failed: %v", err)
	}
	if _, err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return sim.History()
}

func TestStore_SaveLoadHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	h := runHistory(t, "stored", 6, 15)

	if err := s.SaveHistory(ctx, h); err != nil {
		t.Fatalf("SaveHistory failed: %v", err)
	}

	loaded, err := s.LoadHistory(ctx, "stored")
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if loaded.Seed != h.Seed || loaded.TotalSteps != 6 || loaded.InitialPopulation != 15 {
		t.Errorf("Unexpected metadata %+v", loaded)
	}
	if !reflect.DeepEqual(loaded.Frames, h.Frames) {
		t.Error("Expected stored frames to match the simulation")
	}
	if !reflect.DeepEqual(loaded.Config.TypeProportions, h.Config.TypeProportions) {
		t.Errorf("Expected config to round-trip, got %+v", loaded.Config)
	}
	if err := tissue.ValidateHistory(loaded); err != nil {
		t.Errorf("Loaded history invalid: %v", err)
	}

	// saving again replaces rather than duplicates
	if err := s.SaveHistory(ctx, h); err != nil {
		t.Fatalf("second SaveHistory failed: %v", err)
	}
	again, err := s.LoadHistory(ctx, "stored")
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(again.Frames) != 6 || again.Frames[0].Len() != 15 {
		t.Errorf("Expected 6 frames of 15 cells, got %d frames", len(again.Frames))
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadHistory(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestStore_AppendAndLoadFrame(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	frame := tissue.Frame{Step: 3, X: []int{-1, 4}, Y: []int{2, 0}, Types: []tissue.CellType{tissue.TypeB, tissue.TypeD}}
	if err := s.AppendFrame(ctx, "partial", frame); err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}

	got, ok, err := s.LoadFrame(ctx, "partial", 3)
	if err != nil || !ok {
		t.Fatalf("LoadFrame failed: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, frame) {
		t.Errorf("Expected %+v, got %+v", frame, got)
	}

	if _, ok, err := s.LoadFrame(ctx, "partial", 4); err != nil || ok {
		t.Errorf("Expected missing frame, got ok=%v err=%v", ok, err)
	}

	bad := tissue.Frame{Step: 0, X: []int{1, 1}, Y: []int{1, 1}, Types: []tissue.CellType{tissue.TypeA, tissue.TypeA}}
	if err := s.AppendFrame(ctx, "partial", bad); err == nil {
		t.Error("Expected invalid frame to be rejected")
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []tissue.RunID{"first", "second"} {
		if err := s.SaveHistory(ctx, runHistory(t, id, 3, 5)); err != nil {
			t.Fatalf("SaveHistory(%s) failed: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	for _, r := range runs {
		if r.FramesStored != 3 || r.InitialPopulation != 5 {
			t.Errorf("Unexpected summary %+v", r)
		}
	}

	if err := s.DeleteRun(ctx, "first"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	runs, _ = s.ListRuns(ctx)
	if len(runs) != 1 || runs[0].RunID != "second" {
		t.Errorf("Expected only second to remain, got %+v", runs)
	}
	if _, err := s.LoadHistory(ctx, "first"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected deleted run to be gone, got %v", err)
	}
}

func TestRecorder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mgr := tissue.NewNotificationManager()
	rec := NewRecorder("sqlite", s)
	if rec.ID() != "sqlite" || rec.Type() != "sqlite" {
		t.Errorf("Unexpected recorder identity %s/%s", rec.ID(), rec.Type())
	}
	if err := mgr.RegisterNotifier(rec); err != nil {
		t.Fatalf("RegisterNotifier failed: %v", err)
	}

	seed := int64(5)
	params := tissue.Params{TotalSteps: 4, InitialPopulation: 8, Seed: &seed, Config: tissue.DefaultConfig()}
	sim, err := tissue.NewSimulation(params, tissue.WithRunID("recorded"), tissue.WithNotifications(mgr))
	if err != nil {
		t.Fatalf("NewSimulation failed: %v", err)
	}
	if err := s.SaveRun(ctx, sim.History()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if _, err := sim.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	mgr.Close()

	loaded, err := s.LoadHistory(ctx, "recorded")
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Frames, sim.Frames()) {
		t.Errorf("Expected recorded frames to match, got %d frames", len(loaded.Frames))
	}
}
