// internal/run/coordinator.go
// Package run drives a set of frames through the pipeline, either all at once
// (quick mode) or one after another with each frame's critique feeding the next.
package run

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/pipeline"
	"github.com/mwiater/atelier/internal/providers"
)

var tracer = otel.Tracer("atelier/run")

// FrameRunner runs one frame. *pipeline.Sequencer implements it.
type FrameRunner interface {
	Run(ctx context.Context, req pipeline.DesignRequest, sink pipeline.Sink) (*pipeline.Frame, error)
}

// Request describes one generate invocation.
type Request struct {
	// ID names the run. Empty means a new UUID is assigned.
	ID                 string
	Prompt             string
	Frames             int
	Quick              bool
	Concepts           []string
	CustomInstructions string
	// Revision, when set, runs a single frame that edits the given HTML.
	Revision *pipeline.Revision
}

// RequestFromConfig fills the invocation settings from configuration.
func RequestFromConfig(cfg *appconfig.Config, prompt string) Request {
	return Request{
		Prompt:             prompt,
		Frames:             cfg.FrameCount(),
		Quick:              cfg.QuickMode,
		Concepts:           cfg.Concepts,
		CustomInstructions: cfg.CustomInstructions,
	}
}

// FrameResult is a frame that reached a terminal state.
type FrameResult struct {
	Index int
	Frame *pipeline.Frame
	// Err is set when the frame failed; Frame then holds the error artifact.
	Err error
}

// Result is the outcome of a run. Cancelled frames are absent.
type Result struct {
	ID        string
	Frames    []FrameResult
	Cancelled bool
}

// Completed counts frames that finished without error.
func (r *Result) Completed() int {
	n := 0
	for _, f := range r.Frames {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts frames that ended in an error artifact.
func (r *Result) Failed() int {
	return len(r.Frames) - r.Completed()
}

// Coordinator runs multi-frame generations.
type Coordinator struct {
	Runner FrameRunner
	// Registry, when set, exposes each run's tracker while it executes.
	Registry *Registry
}

// NewCoordinator returns a Coordinator that runs frames with runner.
func NewCoordinator(runner FrameRunner, registry *Registry) *Coordinator {
	return &Coordinator{Runner: runner, Registry: registry}
}

// Generate runs every frame of req and reports events to sink. Events are
// delivered one at a time, so sink need not be safe for concurrent use.
//
// Frame failures are recorded in the Result, never returned. When ctx is
// cancelled Generate returns the frames that had already finished along with
// ctx's error.
func (c *Coordinator) Generate(ctx context.Context, req Request, sink pipeline.Sink) (*Result, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	tracker := NewTracker(id)
	if c.Registry != nil {
		c.Registry.Add(tracker)
	}
	defer tracker.Finish()

	ctx, span := tracer.Start(ctx, "run")
	defer span.End()

	frames := req.Frames
	if req.Revision != nil || frames <= 0 {
		frames = 1
	}
	span.SetAttributes(
		attribute.String("run.id", id),
		attribute.Int("run.frames", frames),
		attribute.Bool("run.quick", req.Quick),
	)
	logging.LogEvent("run %s: %d frame(s), quick=%t", id, frames, req.Quick)

	emit := serialize(tracker, sink)
	res := &Result{ID: id}
	var err error
	if req.Quick && req.Revision == nil {
		err = c.quick(ctx, req, frames, emit, tracker, res)
	} else {
		err = c.sequential(ctx, req, frames, emit, tracker, res)
	}
	sort.Slice(res.Frames, func(i, j int) bool { return res.Frames[i].Index < res.Frames[j].Index })
	if err != nil {
		res.Cancelled = true
		span.RecordError(err)
		logging.LogEvent("run %s cancelled after %d frame(s)", id, len(res.Frames))
		return res, err
	}
	return res, nil
}

// serialize wraps sink so concurrent frames deliver events one at a time and
// the tracker sees every event first.
func serialize(tracker *Tracker, sink pipeline.Sink) pipeline.Sink {
	var mu sync.Mutex
	return func(e pipeline.Event) {
		mu.Lock()
		defer mu.Unlock()
		tracker.Observe(e)
		if sink != nil {
			sink(e)
		}
	}
}

func frameRequest(req Request, index int, critique string) pipeline.DesignRequest {
	style := pipeline.StyleFor(index, req.Concepts)
	return pipeline.DesignRequest{
		Prompt:             req.Prompt,
		StyleDirective:     style.Directive,
		Label:              style.Name,
		FrameIndex:         index,
		CustomInstructions: req.CustomInstructions,
		CritiqueFeedback:   critique,
		Revision:           req.Revision,
	}
}

func queued(emit pipeline.Sink, index int) {
	emit(pipeline.Event{Kind: pipeline.EventStage, FrameIndex: index, Stage: pipeline.StageQueued})
}

func (c *Coordinator) quick(ctx context.Context, req Request, frames int, emit pipeline.Sink, tracker *Tracker, res *Result) error {
	for i := 0; i < frames; i++ {
		queued(emit, i)
	}

	var mu sync.Mutex
	var g errgroup.Group
	for i := 0; i < frames; i++ {
		g.Go(func() error {
			frame, err := c.Runner.Run(ctx, frameRequest(req, i, ""), emit)
			if cancelled(ctx, frame, err) {
				tracker.Discard(i)
				return nil
			}
			mu.Lock()
			res.Frames = append(res.Frames, FrameResult{Index: i, Frame: frame, Err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (c *Coordinator) sequential(ctx context.Context, req Request, frames int, emit pipeline.Sink, tracker *Tracker, res *Result) error {
	critique := ""
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		queued(emit, i)
		frame, err := c.Runner.Run(ctx, frameRequest(req, i, critique), emit)
		if cancelled(ctx, frame, err) {
			tracker.Discard(i)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		res.Frames = append(res.Frames, FrameResult{Index: i, Frame: frame, Err: err})
		critique = ""
		if err == nil && frame != nil {
			critique = frame.Critique
		}
	}
	return ctx.Err()
}

// cancelled reports whether a frame was abandoned rather than finished or failed.
func cancelled(ctx context.Context, frame *pipeline.Frame, err error) bool {
	return providers.IsCancelled(err) || (frame == nil && ctx.Err() != nil)
}
