package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/IshaanNene/xmarks/internal/collector"
	"github.com/IshaanNene/xmarks/internal/config"
	"github.com/IshaanNene/xmarks/internal/dashboard"
	"github.com/IshaanNene/xmarks/internal/export"
	"github.com/IshaanNene/xmarks/internal/session"
	"github.com/IshaanNene/xmarks/internal/types"
)

// Controller is the part of a session the API drives.
type Controller interface {
	Scan(ctx context.Context) (int, error)
	AutoScroll(ctx context.Context, onProgress collector.ProgressFunc) (*collector.Result, error)
	Stop() error
	Export(ctx context.Context, format string) (*export.Payload, string, error)
	Clear() error
	Posts() []types.Post
	State() session.State
	Count() int
	Stats() map[string]int64
}

// Run tracks one auto-scroll started through the API.
type Run struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Iterations int        `json:"iterations"`
	Added      int        `json:"added"`
	Collected  int        `json:"collected"`
	Error      string     `json:"error,omitempty"`
}

// Server exposes a session over a small REST API.
type Server struct {
	mux    *http.ServeMux
	port   int
	ctrl   Controller
	logger *slog.Logger

	// Auto-scroll runs outlive the request that started them.
	runCtx    context.Context
	runCancel context.CancelFunc
	runsWG    sync.WaitGroup
	runs      []*Run
	runsMu    sync.RWMutex

	liveInterval time.Duration

	srv *http.Server
}

// NewServer creates an API server for ctrl.
func NewServer(port int, ctrl Controller, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		mux:       http.NewServeMux(),
		port:      port,
		ctrl:      ctrl,
		logger:    logger.With("component", "api_server"),
		runCtx:    ctx,
		runCancel: cancel,

		liveInterval: time.Second,
	}

	s.registerRoutes()
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves the API in the background.
func (s *Server) Start() {
	s.srv = &http.Server{Addr: fmt.Sprintf(":%d", s.port), Handler: s.mux}
	s.logger.Info("API server starting", "addr", s.srv.Addr)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
}

// Shutdown stops the listener, then stops and awaits any running scroll.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.srv != nil {
		err = s.srv.Shutdown(ctx)
	}
	if stopErr := s.ctrl.Stop(); stopErr == nil {
		s.logger.Info("stopping auto-scroll for shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.runsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.runCancel()
		<-done
	}
	s.runCancel()
	return err
}

func (s *Server) registerRoutes() {
	s.mux.Handle("GET /{$}", dashboard.Handler())

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/ws", s.handleLive)

	s.mux.HandleFunc("POST /api/scan", s.handleScan)
	s.mux.HandleFunc("POST /api/scroll", s.handleScroll)
	s.mux.HandleFunc("POST /api/stop", s.handleStop)

	s.mux.HandleFunc("GET /api/runs", s.handleListRuns)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)

	s.mux.HandleFunc("GET /api/bookmarks", s.handleBookmarks)
	s.mux.HandleFunc("DELETE /api/bookmarks", s.handleClear)
	s.mux.HandleFunc("POST /api/export", s.handleExport)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"state":     s.ctrl.State().String(),
		"collected": s.ctrl.Count(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.ctrl.Stats())
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	added, err := s.ctrl.Scan(r.Context())
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]int{
		"added":     added,
		"collected": s.ctrl.Count(),
	})
}

func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	run := &Run{
		ID:        "run-" + strconv.FormatInt(time.Now().UnixMilli(), 10),
		Status:    "running",
		StartedAt: time.Now(),
	}
	started := make(chan error, 1)

	s.runsWG.Add(1)
	go func() {
		defer s.runsWG.Done()

		first := true
		res, err := s.ctrl.AutoScroll(s.runCtx, func(count int) {
			if first {
				first = false
				s.addRun(run)
				started <- nil
			}
			s.updateRun(run.ID, func(r *Run) { r.Collected = count })
		})
		if first {
			if err == nil {
				s.addRun(run)
				s.finishRun(run.ID, res, nil)
			}
			started <- err
			return
		}
		s.finishRun(run.ID, res, err)
	}()

	if err := <-started; err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, s.getRun(run.ID))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, *run)
	}
	s.jsonResponse(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run := s.getRun(r.PathValue("id"))
	if run == nil {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.ctrl.Posts())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Clear(); err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleExport stores the export through the session sink and returns the
// file as a download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	payload, location, err := s.ctrl.Export(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	w.Header().Set("Content-Type", payload.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", payload.Filename))
	w.Header().Set("X-Export-Location", location)
	w.Header().Set("X-Export-Count", strconv.Itoa(payload.Count))
	w.WriteHeader(http.StatusOK)
	w.Write(payload.Data)
}

func (s *Server) addRun(run *Run) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	s.runs = append(s.runs, run)
}

func (s *Server) updateRun(id string, fn func(*Run)) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	for _, run := range s.runs {
		if run.ID == id {
			fn(run)
			return
		}
	}
}

func (s *Server) finishRun(id string, res *collector.Result, err error) {
	now := time.Now()
	s.updateRun(id, func(r *Run) {
		r.FinishedAt = &now
		r.Status = "done"
		if res != nil {
			r.Reason = res.Reason.String()
			r.Iterations = res.Iterations
			r.Added = res.Added
			r.Collected = res.Collected
		}
		if err != nil {
			r.Status = "failed"
			r.Error = err.Error()
		}
	})
	if err != nil {
		s.logger.Error("auto-scroll failed", "run", id, "error", err)
	}
}

// getRun returns a copy of the run with the given id, or nil.
func (s *Server) getRun(id string) *Run {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()
	for _, run := range s.runs {
		if run.ID == id {
			cp := *run
			return &cp
		}
	}
	return nil
}

func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, types.ErrWrongPage):
		status, msg = http.StatusConflict, session.WrongPageMessage
	case errors.Is(err, types.ErrBusy), errors.Is(err, types.ErrNotRunning):
		status = http.StatusConflict
	case errors.Is(err, types.ErrEmptyCollection):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	}
	s.jsonResponse(w, status, map[string]string{"error": msg})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
