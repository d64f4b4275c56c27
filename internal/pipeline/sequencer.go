// internal/pipeline/sequencer.go
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/envelope"
	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/placeholder"
	"github.com/mwiater/atelier/internal/providers"
)

var tracer = otel.Tracer("atelier/pipeline")

// Sequencer runs the stages for a single frame.
type Sequencer struct {
	Text      providers.TextGenerator
	Images    providers.ImageGenerator
	Available map[providers.ImageSource]bool
	Model     string
	MaxTokens int
	// DisableReview skips the review stage for every frame.
	DisableReview bool
}

// New builds a Sequencer from configuration and already-constructed providers.
func New(cfg *appconfig.Config, text providers.TextGenerator, images providers.ImageGenerator, available map[providers.ImageSource]bool) *Sequencer {
	s := &Sequencer{
		Text:      text,
		Images:    images,
		Available: available,
		Model:     appconfig.DefaultModel,
	}
	if cfg != nil {
		s.Model = cfg.TextModel()
		s.MaxTokens = cfg.MaxTokensOrDefault()
		s.DisableReview = cfg.DisableReview
	}
	return s
}

// Run executes layout, images, compositing, review, and critique for req,
// reporting progress to sink.
//
// A layout failure ends the frame: Run emits an error event and returns the
// error artifact frame together with the error. Cancellation returns a nil
// frame and the context error without emitting an error event. Failures in
// every later stage are logged and the frame continues with its last good HTML.
func (s *Sequencer) Run(ctx context.Context, req DesignRequest, sink Sink) (*Frame, error) {
	if sink == nil {
		sink = discard
	}
	ctx, span := tracer.Start(ctx, "frame", trace.WithAttributes(
		attribute.Int("frame.index", req.FrameIndex),
		attribute.Bool("frame.revision", req.IsRevision()),
		attribute.String("frame.model", s.Model),
	))
	defer span.End()

	f := &frameRun{seq: s, req: req, sink: sink, label: frameLabel(req)}

	if err := f.layout(ctx); err != nil {
		if providers.IsCancelled(err) {
			return nil, err
		}
		span.RecordError(err)
		return f.fail(err), err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.images(ctx); err != nil {
		return nil, err
	}
	if err := f.review(ctx); err != nil {
		return nil, err
	}

	frame := &Frame{
		HTML:   envelope.CapHeights(f.html),
		Label:  f.label,
		Width:  f.width,
		Height: f.height,
	}
	f.stage(StageDone, false, "")
	sink(Event{
		Kind:       EventResult,
		FrameIndex: req.FrameIndex,
		HTML:       frame.HTML,
		Label:      frame.Label,
		Width:      frame.Width,
		Height:     frame.Height,
	})

	frame.Critique = f.critique(ctx, frame.HTML)
	if frame.Critique != "" {
		sink(Event{Kind: EventCritique, FrameIndex: req.FrameIndex, Text: frame.Critique})
	}
	return frame, nil
}

func frameLabel(req DesignRequest) string {
	if l := strings.TrimSpace(req.Label); l != "" {
		return l
	}
	if req.IsRevision() {
		return "Revision"
	}
	return fmt.Sprintf("Frame %d", req.FrameIndex+1)
}

// frameRun is the mutable state of one Run call.
type frameRun struct {
	seq      *Sequencer
	req      DesignRequest
	sink     Sink
	label    string
	progress float64

	html          string
	width, height int
}

// stage emits a stage event. Progress never moves backwards.
func (f *frameRun) stage(st Stage, skipped bool, reason string) {
	if p := st.Progress(); p > f.progress {
		f.progress = p
	}
	f.sink(Event{
		Kind:       EventStage,
		FrameIndex: f.req.FrameIndex,
		Stage:      st,
		Progress:   f.progress,
		Skipped:    skipped,
		Reason:     reason,
	})
}

func (f *frameRun) preview() {
	f.sink(Event{
		Kind:       EventPreview,
		FrameIndex: f.req.FrameIndex,
		HTML:       f.html,
		Label:      f.label,
		Width:      f.width,
		Height:     f.height,
	})
}

func (f *frameRun) fail(err error) *Frame {
	msg := err.Error()
	logging.LogStage(f.req.FrameIndex, string(StageError), "%s", msg)
	html := envelope.ErrorHTML(msg)
	f.sink(Event{Kind: EventStage, FrameIndex: f.req.FrameIndex, Stage: StageError, Progress: f.progress, Reason: msg})
	f.sink(Event{Kind: EventError, FrameIndex: f.req.FrameIndex, Message: msg, HTML: html, Label: f.label})
	return &Frame{HTML: html, Label: f.label}
}

func (f *frameRun) generate(ctx context.Context, system, user string) (string, error) {
	return f.seq.Text.GenerateText(ctx, providers.TextRequest{
		SystemPrompt: system,
		UserContent:  user,
		Model:        f.seq.Model,
		MaxTokens:    f.seq.MaxTokens,
	})
}

func (f *frameRun) apply(res envelope.LayoutResult, restore envelope.Restorer) {
	f.html = restore.Restore(res.HTML)
	if res.Width != nil && res.Height != nil {
		f.width, f.height = *res.Width, *res.Height
	}
}

func (f *frameRun) layout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "stage_layout")
	defer span.End()
	f.stage(StageLayout, false, "")

	system, user := layoutSystemPrompt, layoutPrompt(f.req)
	var restore envelope.Restorer
	if rev := f.req.Revision; rev != nil {
		var base string
		base, restore = envelope.SubstituteImages(rev.BaseHTML)
		system, user = revisionSystemPrompt, revisionPrompt(rev.Instruction, base)
	}

	raw, err := f.generate(ctx, system, user)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("layout: %w", err)
	}
	res := envelope.Decode(raw)
	if !res.Markup {
		err := providers.NewError("layout", providers.ErrParse, "model output contained no HTML")
		span.RecordError(err)
		return err
	}
	f.apply(res, restore)
	span.SetAttributes(attribute.Int("layout.bytes", len(f.html)))
	logging.LogStage(f.req.FrameIndex, string(StageLayout), "decoded %d bytes (size %dx%d)", len(f.html), f.width, f.height)
	f.preview()
	return nil
}

// images returns an error only on cancellation.
func (f *frameRun) images(ctx context.Context) error {
	if len(f.seq.Available) == 0 || f.seq.Images == nil {
		f.skip(StageImages, "no image provider credentials configured")
		return nil
	}
	f.stage(StageImages, false, "")

	r := &placeholder.Resolver{Images: f.seq.Images, Available: f.seq.Available, Frame: f.req.FrameIndex}
	res, err := r.Resolve(ctx, f.html)
	if err != nil {
		if providers.IsCancelled(err) {
			return err
		}
		f.skip(StageImages, fmt.Sprintf("image resolution failed: %v", err))
		return nil
	}
	if res.Skipped {
		f.skip(StageImages, res.Reason)
		return nil
	}

	f.stage(StageCompositing, false, res.Reason)
	f.html = res.HTML
	logging.LogStage(f.req.FrameIndex, string(StageCompositing), "%d of %d placeholders composited", res.ImageCount, res.Placeholders)
	f.preview()
	return nil
}

func (f *frameRun) skip(st Stage, reason string) {
	logging.LogStage(f.req.FrameIndex, string(st), "skipped: %s", reason)
	f.stage(st, true, reason)
}

// review returns an error only on cancellation.
func (f *frameRun) review(ctx context.Context) error {
	switch {
	case f.req.IsRevision():
		f.skip(StageReview, "revision request")
		return nil
	case f.seq.DisableReview:
		f.skip(StageReview, "review disabled")
		return nil
	}

	ctx, span := tracer.Start(ctx, "stage_review")
	defer span.End()
	f.stage(StageReview, false, "")

	substituted, restore := envelope.SubstituteImages(f.html)
	span.SetAttributes(attribute.Int("review.substituted_images", restore.Len()))
	raw, err := f.generate(ctx, reviewSystemPrompt, reviewPrompt(substituted))
	if err != nil {
		if providers.IsCancelled(err) {
			return err
		}
		span.RecordError(err)
		f.skip(StageReview, fmt.Sprintf("review failed: %v", err))
		return nil
	}
	res := envelope.Decode(raw)
	if !res.Markup {
		f.skip(StageReview, "review returned no HTML")
		return nil
	}
	f.stage(StageRefining, false, "")
	f.apply(res, restore)
	return nil
}

// critique is best effort: any failure yields an empty string.
func (f *frameRun) critique(ctx context.Context, html string) string {
	ctx, span := tracer.Start(ctx, "stage_critique")
	defer span.End()

	substituted, _ := envelope.SubstituteImages(html)
	text, err := f.generate(ctx, critiqueSystemPrompt, critiquePrompt(f.req.Prompt, substituted))
	if err != nil {
		span.RecordError(err)
		logging.LogStage(f.req.FrameIndex, "critique", "failed: %v", err)
		return ""
	}
	return strings.TrimSpace(text)
}
