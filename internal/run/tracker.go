// internal/run/tracker.go
package run

import (
	"sort"
	"sync"
	"time"

	"github.com/mwiater/atelier/internal/pipeline"
)

// FrameStatus is one frame's entry in a Snapshot.
type FrameStatus struct {
	Index int    `json:"index"`
	Label string `json:"label,omitempty"`
	pipeline.Status
}

// Snapshot is a point-in-time copy of a run's progress.
type Snapshot struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"startedAt"`
	Finished  bool          `json:"finished"`
	Frames    []FrameStatus `json:"frames"`
}

// Tracker owns the frame status map for one run. Readers only see copies.
type Tracker struct {
	mu        sync.RWMutex
	id        string
	startedAt time.Time
	finished  bool
	frames    map[int]FrameStatus
}

// NewTracker returns an empty tracker for run id.
func NewTracker(id string) *Tracker {
	return &Tracker{id: id, startedAt: time.Now().UTC(), frames: map[int]FrameStatus{}}
}

// ID returns the run identifier.
func (t *Tracker) ID() string { return t.id }

// Observe folds an event into the status map.
func (t *Tracker) Observe(e pipeline.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fs := t.frames[e.FrameIndex]
	fs.Index = e.FrameIndex
	switch e.Kind {
	case pipeline.EventStage:
		if fs.Stage.Terminal() {
			return
		}
		fs.Status = e.Status()
	case pipeline.EventPreview, pipeline.EventResult, pipeline.EventError:
		if e.Label != "" {
			fs.Label = e.Label
		}
	default:
		return
	}
	t.frames[e.FrameIndex] = fs
}

// Discard removes a frame that was cancelled before it finished.
func (t *Tracker) Discard(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.frames, index)
}

// Finish marks the run complete.
func (t *Tracker) Finish() {
	t.mu.Lock()
	t.finished = true
	t.mu.Unlock()
}

// Snapshot returns a copy of every frame's status ordered by index.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := Snapshot{ID: t.id, StartedAt: t.startedAt, Finished: t.finished, Frames: make([]FrameStatus, 0, len(t.frames))}
	for _, fs := range t.frames {
		out.Frames = append(out.Frames, fs)
	}
	sort.Slice(out.Frames, func(i, j int) bool { return out.Frames[i].Index < out.Frames[j].Index })
	return out
}

// Registry indexes the trackers of in-flight and recently finished runs.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Tracker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: map[string]*Tracker{}}
}

func (r *Registry) Add(t *Tracker) {
	r.mu.Lock()
	r.runs[t.ID()] = t
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.runs[id]
	return t, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.runs, id)
	r.mu.Unlock()
}
