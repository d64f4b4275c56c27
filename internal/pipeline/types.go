// internal/pipeline/types.go
// Package pipeline runs the stages that turn one design request into one frame:
// layout, image resolution, compositing, review, and critique.
package pipeline

// Stage is a point in a frame's lifecycle.
type Stage string

const (
	StageQueued      Stage = "queued"
	StageLayout      Stage = "layout"
	StageImages      Stage = "images"
	StageCompositing Stage = "compositing"
	StageReview      Stage = "review"
	StageRefining    Stage = "refining"
	StageDone        Stage = "done"
	StageError       Stage = "error"
)

// progress is the fraction of work reported on entry to each stage.
var progress = map[Stage]float64{
	StageQueued:      0,
	StageLayout:      0.1,
	StageImages:      0.35,
	StageCompositing: 0.55,
	StageReview:      0.75,
	StageRefining:    0.85,
	StageDone:        1,
}

// Progress returns the fraction reported on entry to s. Error keeps whatever
// progress the frame had reached, so it reports zero here.
func (s Stage) Progress() float64 {
	return progress[s]
}

// Terminal reports whether no further stage follows s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageError
}

// Status is a frame's current position in the pipeline.
type Status struct {
	Stage    Stage   `json:"stage"`
	Progress float64 `json:"progress"`
	Skipped  bool    `json:"skipped,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// Revision asks the layout stage to edit an existing frame instead of drafting a new one.
type Revision struct {
	Instruction string
	BaseHTML    string
}

// DesignRequest is the input for one frame. It is passed by value and never mutated.
type DesignRequest struct {
	Prompt             string
	StyleDirective     string
	Label              string
	FrameIndex         int
	CustomInstructions string
	CritiqueFeedback   string
	Revision           *Revision
}

// IsRevision reports whether the request edits an existing frame.
func (r DesignRequest) IsRevision() bool {
	return r.Revision != nil
}

// Frame is a finished design artifact. Zero Width or Height means the layout
// did not declare a size.
type Frame struct {
	HTML     string `json:"html"`
	Label    string `json:"label"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Critique string `json:"critique,omitempty"`
}

// EventKind names a progress event.
type EventKind string

const (
	EventStage    EventKind = "stage"
	EventPreview  EventKind = "preview"
	EventResult   EventKind = "result"
	EventCritique EventKind = "critique"
	EventError    EventKind = "error"
)

// Event is one progress notification for a frame. Which fields are set depends on Kind:
// stage events carry Stage/Progress/Skipped/Reason, preview and result events carry
// HTML and dimensions, critique events carry Text, error events carry Message and
// the error artifact in HTML.
type Event struct {
	Kind       EventKind `json:"kind"`
	FrameIndex int       `json:"frame"`
	Stage      Stage     `json:"stage,omitempty"`
	Progress   float64   `json:"progress,omitempty"`
	Skipped    bool      `json:"skipped,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	HTML       string    `json:"html,omitempty"`
	Label      string    `json:"label,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Text       string    `json:"text,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Status returns the status carried by a stage event.
func (e Event) Status() Status {
	return Status{Stage: e.Stage, Progress: e.Progress, Skipped: e.Skipped, Reason: e.Reason}
}

// Sink receives events. A Sink passed to a Sequencer is called from one goroutine.
type Sink func(Event)

func discard(Event) {}
