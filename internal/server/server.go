// Package server provides the HTTP server of shotcoach.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/shotcoach/internal/analysis"
	"github.com/ayusman/shotcoach/internal/log"
	"github.com/ayusman/shotcoach/internal/server/api"
	"github.com/ayusman/shotcoach/internal/store"
)

// Config holds the server configuration. Routes whose dependency is nil are
// not registered.
type Config struct {
	StaticDir string
	Store     *store.Store

	// Analysis holds the thresholds used to re-check submitted frames.
	// The zero value means analysis.DefaultConfig().
	Analysis analysis.Config
	Engines  *analysis.EngineRef

	OnAnalysisSaved   func(*store.Analysis)
	OnFeedbackChanged func(*analysis.Engine)

	Capture api.CaptureController
	Events  *Hub
	Frames  FrameSource
}

// Server is the shotcoach HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a Server with the given configuration.
func New(config Config) *Server {
	if config.Analysis.MinFrames == 0 {
		config.Analysis = analysis.DefaultConfig()
	}
	if config.Engines == nil {
		config.Engines = analysis.NewEngineRef(nil)
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if st := s.config.Store; st != nil {
		users := api.NewUserHandler(st)
		s.mux.Handle("/api/users", users)
		s.mux.Handle("/api/users/", users)

		analyses := api.NewAnalysisHandler(st, s.config.Analysis, s.config.Engines, s.config.OnAnalysisSaved)
		s.mux.Handle("/api/analyses", analyses)
		s.mux.Handle("/api/analyses/", analyses)

		s.mux.Handle("/api/settings/feedback",
			api.NewFeedbackSettingsHandler(st, s.config.Engines, s.config.OnFeedbackChanged))
	}

	if s.config.Capture != nil {
		sessions := api.NewSessionHandler(s.config.Capture)
		s.mux.Handle("/api/session", sessions)
		s.mux.Handle("/api/session/start", sessions)
		s.mux.Handle("/api/session/cancel", sessions)
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/session/events", s.config.Events)
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}
	if s.config.Capture != nil {
		st := s.config.Capture.Status()
		response["session"] = st.State
		response["modelReady"] = st.ModelReady
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.config.Events != nil {
		s.config.Events.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
