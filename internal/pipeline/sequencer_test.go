package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/mwiater/atelier/internal/providers"
)

// scriptedText answers each prompt kind with a fixed reply or error.
type scriptedText struct {
	mu       sync.Mutex
	layout   string
	review   string
	critique string
	errs     map[string]error
	requests map[string][]providers.TextRequest
}

func promptKind(system string) string {
	switch system {
	case layoutSystemPrompt:
		return "layout"
	case revisionSystemPrompt:
		return "revision"
	case reviewSystemPrompt:
		return "review"
	case critiqueSystemPrompt:
		return "critique"
	}
	return "unknown"
}

func (s *scriptedText) GenerateText(ctx context.Context, req providers.TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	kind := promptKind(req.SystemPrompt)
	s.mu.Lock()
	if s.requests == nil {
		s.requests = map[string][]providers.TextRequest{}
	}
	s.requests[kind] = append(s.requests[kind], req)
	s.mu.Unlock()
	if err := s.errs[kind]; err != nil {
		return "", err
	}
	switch kind {
	case "layout", "revision":
		return s.layout, nil
	case "review":
		return s.review, nil
	case "critique":
		return s.critique, nil
	}
	return "", errors.New("unexpected prompt")
}

func (s *scriptedText) calls(kind string) []providers.TextRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[kind]
}

type eventLog struct {
	events []Event
}

func (l *eventLog) sink(e Event) { l.events = append(l.events, e) }

func (l *eventLog) kinds(kind EventKind) []Event {
	var out []Event
	for _, e := range l.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) stage(st Stage) (Event, bool) {
	for _, e := range l.events {
		if e.Kind == EventStage && e.Stage == st {
			return e, true
		}
	}
	return Event{}, false
}

func assertMonotonic(t *testing.T, events []Event) {
	t.Helper()
	last := 0.0
	for _, e := range events {
		if e.Kind != EventStage {
			continue
		}
		if e.Progress < last {
			t.Fatalf("progress went backwards at %s: %v < %v", e.Stage, e.Progress, last)
		}
		last = e.Progress
	}
}

const layoutOutput = "```html\n<!--size:400x300-->\n<div class=\"card\"><div data-placeholder=\"Coffee cup\" data-ph-w=\"200\" data-ph-h=\"100\"></div><p>Pricing</p></div>\n```"

func TestRunWithoutImageCredentialsSkipsImages(t *testing.T) {
	text := &scriptedText{layout: layoutOutput, critique: "- tighten spacing"}
	seq := &Sequencer{Text: text, Model: "claude-test", DisableReview: true}
	var log eventLog

	frame, err := seq.Run(context.Background(), DesignRequest{Prompt: "pricing card", FrameIndex: 2}, log.sink)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	want := `<div class="card"><div data-placeholder="Coffee cup" data-ph-w="200" data-ph-h="100"></div><p>Pricing</p></div>`
	if frame.HTML != want {
		t.Fatalf("HTML = %q", frame.HTML)
	}
	if frame.Width != 400 || frame.Height != 300 || frame.Label != "Frame 3" {
		t.Fatalf("unexpected frame %+v", frame)
	}
	if frame.Critique != "- tighten spacing" {
		t.Fatalf("critique = %q", frame.Critique)
	}
	images, ok := log.stage(StageImages)
	if !ok || !images.Skipped || images.Reason == "" {
		t.Fatalf("images stage should be skipped with a reason: %+v", images)
	}
	if _, ok := log.stage(StageCompositing); ok {
		t.Fatal("compositing must not run without credentials")
	}
	if len(log.kinds(EventResult)) != 1 || len(log.kinds(EventError)) != 0 {
		t.Fatalf("expected exactly one result: %+v", log.events)
	}
	if got := log.events[len(log.events)-1]; got.Kind != EventCritique {
		t.Fatalf("critique should follow the result, last event %+v", got)
	}
	assertMonotonic(t, log.events)
}

func TestRunFullPipeline(t *testing.T) {
	reviewed := "<!--size:420x320-->\n<div class=\"card reviewed\"><img src=\"[IMAGE_PLACEHOLDER_0]\"><p style=\"height:100vh\">Pricing</p></div>"
	text := &scriptedText{layout: layoutOutput, review: reviewed, critique: "- more contrast"}
	images := providers.ImageGeneratorFunc(func(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
		return &providers.Image{Data: []byte("png"), MIMEType: "image/png"}, nil
	})
	seq := &Sequencer{
		Text:      text,
		Images:    images,
		Available: map[providers.ImageSource]bool{providers.SourceGemini: true},
		Model:     "claude-test",
	}
	var log eventLog

	frame, err := seq.Run(context.Background(), DesignRequest{Prompt: "pricing card"}, log.sink)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	var stages []Stage
	for _, e := range log.kinds(EventStage) {
		stages = append(stages, e.Stage)
	}
	wantStages := []Stage{StageLayout, StageImages, StageCompositing, StageReview, StageRefining, StageDone}
	if len(stages) != len(wantStages) {
		t.Fatalf("stages = %v, want %v", stages, wantStages)
	}
	for i := range wantStages {
		if stages[i] != wantStages[i] {
			t.Fatalf("stages = %v, want %v", stages, wantStages)
		}
	}
	if n := len(log.kinds(EventPreview)); n != 2 {
		t.Fatalf("expected previews after layout and compositing, got %d", n)
	}

	reviewReq := text.calls("review")
	if len(reviewReq) != 1 {
		t.Fatalf("expected one review call, got %d", len(reviewReq))
	}
	if strings.Contains(reviewReq[0].UserContent, "base64") || !strings.Contains(reviewReq[0].UserContent, "[IMAGE_PLACEHOLDER_0]") {
		t.Fatalf("review payload should carry tokens, not image data: %s", reviewReq[0].UserContent)
	}
	if !strings.Contains(frame.HTML, `src="data:image/png;base64,cG5n"`) {
		t.Fatalf("image payload not restored: %s", frame.HTML)
	}
	if strings.Contains(frame.HTML, "100vh") || !strings.Contains(frame.HTML, "max-height:800px") {
		t.Fatalf("heights not capped: %s", frame.HTML)
	}
	if frame.Width != 420 || frame.Height != 320 {
		t.Fatalf("review dimensions not applied: %+v", frame)
	}
	if crit := text.calls("critique"); len(crit) != 1 || strings.Contains(crit[0].UserContent, "base64") {
		t.Fatal("critique should receive substituted HTML")
	}
	assertMonotonic(t, log.events)
}

func TestRunLayoutFailureIsFatal(t *testing.T) {
	text := &scriptedText{errs: map[string]error{"layout": providers.NewError("anthropic", providers.ErrAuth, "bad key")}}
	seq := &Sequencer{Text: text}
	var log eventLog

	frame, err := seq.Run(context.Background(), DesignRequest{Prompt: "x"}, log.sink)
	if !errors.Is(err, providers.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if frame == nil || !strings.Contains(frame.HTML, `data-frame-error="true"`) {
		t.Fatalf("expected error artifact, got %+v", frame)
	}
	errs := log.kinds(EventError)
	if len(errs) != 1 || errs[0].Message == "" || len(log.kinds(EventResult)) != 0 {
		t.Fatalf("expected one error event and no result: %+v", log.events)
	}
	if len(text.calls("critique")) != 0 {
		t.Fatal("failed frames must not be critiqued")
	}
}

func TestRunUnparseableLayout(t *testing.T) {
	text := &scriptedText{layout: "Sorry, I can't help with that."}
	seq := &Sequencer{Text: text}
	_, err := seq.Run(context.Background(), DesignRequest{Prompt: "x"}, nil)
	if !errors.Is(err, providers.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestRunProseReviewKeepsLayout(t *testing.T) {
	text := &scriptedText{
		layout: `<div class="card">Pricing</div>`,
		review: "No issues found. The design looks great.",
	}
	seq := &Sequencer{Text: text}
	var log eventLog

	frame, err := seq.Run(context.Background(), DesignRequest{Prompt: "x"}, log.sink)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if frame.HTML != `<div class="card">Pricing</div>` {
		t.Fatalf("review prose replaced the layout: %q", frame.HTML)
	}
	var review Event
	for _, e := range log.events {
		if e.Kind == EventStage && e.Stage == StageReview {
			review = e
		}
	}
	if !review.Skipped || review.Reason != "review returned no HTML" {
		t.Fatalf("review should end skipped: %+v", review)
	}
	if _, ok := log.stage(StageRefining); ok {
		t.Fatal("refining must not be emitted for a prose review")
	}
}

func TestRunReviewFailureKeepsLayout(t *testing.T) {
	text := &scriptedText{
		layout: "<div>kept</div>",
		errs: map[string]error{
			"review":   providers.NewError("anthropic", providers.ErrUpstream, "overloaded"),
			"critique": errors.New("critique down"),
		},
	}
	seq := &Sequencer{Text: text}
	var log eventLog

	frame, err := seq.Run(context.Background(), DesignRequest{Prompt: "x"}, log.sink)
	if err != nil {
		t.Fatalf("review and critique failures must not fail the frame: %v", err)
	}
	if frame.HTML != "<div>kept</div>" || frame.Critique != "" {
		t.Fatalf("unexpected frame %+v", frame)
	}
	if len(log.kinds(EventCritique)) != 0 {
		t.Fatal("no critique event expected")
	}
	done, ok := log.stage(StageDone)
	if !ok || done.Progress != 1 {
		t.Fatalf("frame should complete: %+v", log.events)
	}
}

func TestRunRevisionSkipsReview(t *testing.T) {
	base := `<div><img src="data:image/png;base64,QUJD"><h1>Old</h1></div>`
	text := &scriptedText{layout: `<div><img src="[IMAGE_PLACEHOLDER_0]"><h1>New</h1></div>`}
	seq := &Sequencer{Text: text}
	var log eventLog

	frame, err := seq.Run(context.Background(), DesignRequest{
		Prompt:   "x",
		Revision: &Revision{Instruction: "change the heading to New", BaseHTML: base},
	}, log.sink)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if frame.HTML != `<div><img src="data:image/png;base64,QUJD"><h1>New</h1></div>` {
		t.Fatalf("revision not restored: %s", frame.HTML)
	}
	rev := text.calls("revision")
	if len(rev) != 1 || strings.Contains(rev[0].UserContent, "QUJD") || !strings.Contains(rev[0].UserContent, "change the heading") {
		t.Fatalf("unexpected revision request %+v", rev)
	}
	if len(text.calls("review")) != 0 {
		t.Fatal("revisions must not be reviewed")
	}
	if review, ok := log.stage(StageReview); !ok || !review.Skipped {
		t.Fatalf("review should be reported skipped: %+v", review)
	}
	if frame.Label != "Revision" {
		t.Fatalf("label = %q", frame.Label)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	text := &scriptedText{layout: "<div>x</div>"}
	seq := &Sequencer{Text: text}
	var log eventLog

	frame, err := seq.Run(ctx, DesignRequest{Prompt: "x"}, log.sink)
	if !errors.Is(err, context.Canceled) || frame != nil {
		t.Fatalf("expected cancellation, got %v %+v", err, frame)
	}
	if len(log.kinds(EventError)) != 0 {
		t.Fatal("cancelled frames must not emit error events")
	}
}

func TestLayoutPrompt(t *testing.T) {
	got := layoutPrompt(DesignRequest{
		Prompt:             "pricing card",
		StyleDirective:     "bold",
		CustomInstructions: "use blue",
		CritiqueFeedback:   "- bigger buttons",
	})
	for _, want := range []string{"pricing card", "bold", "use blue", "- bigger buttons"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(layoutPrompt(DesignRequest{Prompt: "p"}), "Feedback") {
		t.Error("feedback section should be absent without critique")
	}
}

func TestStyleFor(t *testing.T) {
	if got := StyleFor(6, nil); got.Name != DefaultStyles[1].Name {
		t.Errorf("StyleFor(6) = %q", got.Name)
	}
	concepts := []string{"Retro arcade", " "}
	if got := StyleFor(0, concepts); got.Name != "Retro arcade" || got.Directive != "Retro arcade" {
		t.Errorf("concept not used: %+v", got)
	}
	if got := StyleFor(1, concepts); got.Name != DefaultStyles[1].Name {
		t.Errorf("blank concept should fall back: %+v", got)
	}
}
