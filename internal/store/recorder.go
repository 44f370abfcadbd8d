package store

import (
	"context"

	"github.com/daniacca/chromasim/internal/tissue"
)

// Recorder is a tissue.Notifier that writes every frame event it
// receives into the store, so a run streams to disk as it progresses.
type Recorder struct {
	id    string
	store *Store
}

// NewRecorder creates a recorder writing into s.
func NewRecorder(id string, s *Store) *Recorder {
	return &Recorder{id: id, store: s}
}

func (r *Recorder) ID() string   { return r.id }
func (r *Recorder) Type() string { return "sqlite" }

func (r *Recorder) Notify(ctx context.Context, event tissue.FrameEvent) error {
	return r.store.AppendFrame(ctx, event.RunID, event.Frame)
}

// Close leaves the store open; its owner closes it.
func (r *Recorder) Close() error {
	return nil
}
