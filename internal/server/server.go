// internal/server/server.go
// Package server exposes the generation pipeline over HTTP. Progress is
// streamed to the client as Server-Sent Events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/pipeline"
	"github.com/mwiater/atelier/internal/run"
	"github.com/mwiater/atelier/internal/storage"
)

const (
	maxBodyBytes      = 8 << 20
	keepAliveInterval = 15 * time.Second
	runRetention      = 10 * time.Minute
	shutdownTimeout   = 10 * time.Second
)

// Server serves generate requests.
type Server struct {
	cfg      *appconfig.Config
	coord    *run.Coordinator
	registry *run.Registry
	sink     storage.Sink

	keepAlive time.Duration
	retention time.Duration
}

// New returns a Server. sink may be nil, in which case runs are not persisted.
func New(cfg *appconfig.Config, coord *run.Coordinator, sink storage.Sink) *Server {
	registry := coord.Registry
	if registry == nil {
		registry = run.NewRegistry()
		coord.Registry = registry
	}
	return &Server{
		cfg:       cfg,
		coord:     coord,
		registry:  registry,
		sink:      sink,
		keepAlive: keepAliveInterval,
		retention: runRetention,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Get("/runs/{id}", s.handleRun)
	})
	return r
}

// ListenAndServe serves on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.LogEvent("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logging.LogEvent("shutting down http server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

type revisionBody struct {
	Instruction string `json:"instruction"`
	BaseHTML    string `json:"baseHtml"`
}

type generateBody struct {
	Prompt             string        `json:"prompt"`
	Frames             int           `json:"frames"`
	Quick              *bool         `json:"quick"`
	Concepts           []string      `json:"concepts"`
	CustomInstructions string        `json:"customInstructions"`
	Revision           *revisionBody `json:"revision"`
}

// request merges the body over configured defaults.
func (b generateBody) request(cfg *appconfig.Config) run.Request {
	req := run.RequestFromConfig(cfg, b.Prompt)
	if b.Frames > 0 {
		req.Frames = b.Frames
	}
	if b.Quick != nil {
		req.Quick = *b.Quick
	}
	if len(b.Concepts) > 0 {
		req.Concepts = b.Concepts
	}
	if b.CustomInstructions != "" {
		req.CustomInstructions = b.CustomInstructions
	}
	if b.Revision != nil {
		req.Revision = &pipeline.Revision{Instruction: b.Revision.Instruction, BaseHTML: b.Revision.BaseHTML}
	}
	return req
}

type doneEvent struct {
	RunID     string   `json:"runId"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Cancelled bool     `json:"cancelled"`
	Locations []string `json:"locations,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	if err := validateGenerateRequest(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var gb generateBody
	if err := json.Unmarshal(body, &gb); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	req := gb.request(s.cfg)
	req.ID = uuid.NewString()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Run-Id", req.ID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	events := make(chan pipeline.Event, 16)
	var done doneEvent
	go func() {
		defer close(events)
		res, err := s.coord.Generate(ctx, req, func(e pipeline.Event) { events <- e })
		done = s.finish(ctx, gb.Prompt, res, err)
	}()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case e, ok := <-events:
			if !ok {
				writeEvent(w, "done", done)
				flusher.Flush()
				return
			}
			writeEvent(w, string(e.Kind), e)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

// finish persists a run and schedules its tracker for removal.
func (s *Server) finish(ctx context.Context, prompt string, res *run.Result, err error) doneEvent {
	time.AfterFunc(s.retention, func() { s.registry.Remove(res.ID) })

	d := doneEvent{RunID: res.ID, Completed: res.Completed(), Failed: res.Failed(), Cancelled: res.Cancelled}
	if err != nil {
		logging.LogEvent("run %s ended early: %v", res.ID, err)
	}
	if s.sink != nil && len(res.Frames) > 0 {
		locs, serr := s.sink.Save(context.WithoutCancel(ctx), prompt, res)
		if serr != nil {
			logging.LogEvent("run %s: storing frames: %v", res.ID, serr)
		}
		d.Locations = locs
	}
	return d
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tracker, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, tracker.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeEvent(w io.Writer, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"message": err.Error()})
		name = "error"
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
