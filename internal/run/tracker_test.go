package run

import (
	"testing"

	"github.com/mwiater/atelier/internal/pipeline"
)

func stageEvent(frame int, st pipeline.Stage) pipeline.Event {
	return pipeline.Event{Kind: pipeline.EventStage, FrameIndex: frame, Stage: st, Progress: st.Progress()}
}

func TestTrackerTerminalStatusSticks(t *testing.T) {
	tr := NewTracker("r")
	tr.Observe(stageEvent(0, pipeline.StageLayout))
	tr.Observe(stageEvent(0, pipeline.StageDone))
	tr.Observe(stageEvent(0, pipeline.StageReview))

	snap := tr.Snapshot()
	if len(snap.Frames) != 1 || snap.Frames[0].Stage != pipeline.StageDone || snap.Frames[0].Progress != 1 {
		t.Fatalf("frames = %+v", snap.Frames)
	}
}

func TestTrackerSnapshotOrderAndLabels(t *testing.T) {
	tr := NewTracker("r")
	tr.Observe(stageEvent(2, pipeline.StageQueued))
	tr.Observe(stageEvent(0, pipeline.StageImages))
	tr.Observe(pipeline.Event{Kind: pipeline.EventResult, FrameIndex: 0, Label: "Bold"})
	tr.Observe(pipeline.Event{Kind: pipeline.EventCritique, FrameIndex: 1, Text: "- ignored"})

	snap := tr.Snapshot()
	if len(snap.Frames) != 2 {
		t.Fatalf("expected critique-only frame to be ignored, got %+v", snap.Frames)
	}
	if snap.Frames[0].Index != 0 || snap.Frames[1].Index != 2 {
		t.Fatalf("frames not ordered: %+v", snap.Frames)
	}
	if snap.Frames[0].Label != "Bold" || snap.Frames[0].Stage != pipeline.StageImages {
		t.Fatalf("frame 0 = %+v", snap.Frames[0])
	}
	if snap.Finished {
		t.Fatalf("run should not be finished")
	}

	tr.Discard(2)
	tr.Finish()
	snap = tr.Snapshot()
	if len(snap.Frames) != 1 || !snap.Finished {
		t.Fatalf("after discard/finish: %+v", snap)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	tr := NewTracker("abc")
	reg.Add(tr)
	if got, ok := reg.Get("abc"); !ok || got != tr {
		t.Fatalf("Get returned %v, %v", got, ok)
	}
	reg.Remove("abc")
	if _, ok := reg.Get("abc"); ok {
		t.Fatalf("expected tracker removed")
	}
}
