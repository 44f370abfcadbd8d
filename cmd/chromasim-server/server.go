package main

import (
	"net/http"
	"time"

	"github.com/daniacca/chromasim/internal/logging"
	"github.com/daniacca/chromasim/internal/store"
	"github.com/daniacca/chromasim/internal/tissue"
	"github.com/daniacca/chromasim/internal/tissue/notifiers"
)

const (
	streamNotifierID   = "stream"
	recorderNotifierID = "sqlite"
)

// Server represents the HTTP server for chromasim
type Server struct {
	runs          *tissue.RunManager
	notifierMgr   *tissue.NotificationManager
	stream        *notifiers.WebSocketNotifier
	store         *store.Store
	framesDir     string
	defaultConfig tissue.Config
	stepInterval  time.Duration
	logger        *logging.Logger
}

// NewServer creates a new server instance with a websocket stream
// registered for every run.
func NewServer(logger *logging.Logger) *Server {
	mgr := tissue.NewNotificationManagerWithLogger(logger)
	stream := notifiers.NewWebSocketNotifier(streamNotifierID)
	if err := mgr.RegisterNotifier(stream); err != nil {
		logger.Errorf("Failed to register websocket stream: %v", err)
	}
	return &Server{
		runs:          tissue.NewRunManagerWithLogger(logger),
		notifierMgr:   mgr,
		stream:        stream,
		defaultConfig: tissue.DefaultConfig(),
		stepInterval:  defaultStepIntervalMs * time.Millisecond,
		logger:        logger,
	}
}

// SetStore records every frame of every run into st.
func (s *Server) SetStore(st *store.Store) error {
	if err := s.notifierMgr.RegisterNotifier(store.NewRecorder(recorderNotifierID, st)); err != nil {
		return err
	}
	s.store = st
	return nil
}

// SetFramesDir sets the directory used by the save endpoint
func (s *Server) SetFramesDir(dir string) {
	s.framesDir = dir
}

// SetDefaultConfig sets the tissue config used by runs created without one
func (s *Server) SetDefaultConfig(cfg tissue.Config) {
	s.defaultConfig = cfg
}

// SetStepInterval sets the default background step interval
func (s *Server) SetStepInterval(d time.Duration) {
	if d > 0 {
		s.stepInterval = d
	}
}

// Routes returns the HTTP handler serving the API
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/runs", s.handleRunsCollection)
	mux.HandleFunc("/runs/", s.handleRunRoutes)
	mux.HandleFunc("/archive", s.handleArchiveRoutes)
	mux.HandleFunc("/archive/", s.handleArchiveRoutes)
	mux.HandleFunc("/notifiers", s.handleNotifiersRoutes)
	mux.HandleFunc("/notifiers/", s.handleNotifiersRoutes)
	return mux
}

// Close stops every run and flushes pending notifications
func (s *Server) Close() error {
	s.runs.StopAll()
	return s.notifierMgr.Close()
}
