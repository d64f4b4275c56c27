package placeholder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwiater/atelier/internal/providers"
)

type recordingImages struct {
	mu       sync.Mutex
	calls    []string
	fail     map[providers.ImageSource]bool
	empty    map[providers.ImageSource]bool
	inFlight int32
	peak     int32
	delay    time.Duration
}

func (r *recordingImages) GenerateImage(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
	n := atomic.AddInt32(&r.inFlight, 1)
	defer atomic.AddInt32(&r.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&r.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&r.peak, peak, n) {
			break
		}
	}
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf("%s:%s", req.Source, req.Description))
	r.mu.Unlock()
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.fail[req.Source] {
		return nil, providers.NewError(string(req.Source), providers.ErrUpstream, "boom")
	}
	if r.empty[req.Source] {
		return nil, nil
	}
	return &providers.Image{URL: "https://img.test/" + string(req.Source) + "/" + req.Description}, nil
}

func (r *recordingImages) callsFor(desc string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		if strings.HasSuffix(c, ":"+desc) {
			out = append(out, strings.TrimSuffix(c, ":"+desc))
		}
	}
	return out
}

func available(sources ...providers.ImageSource) map[providers.ImageSource]bool {
	out := map[providers.ImageSource]bool{}
	for _, s := range sources {
		out[s] = true
	}
	return out
}

func TestCandidates(t *testing.T) {
	chain := []providers.ImageSource{providers.SourceUnsplash, providers.SourceDallE, providers.SourceGemini}
	tests := []struct {
		preferred providers.ImageSource
		chain     []providers.ImageSource
		want      string
	}{
		{"", chain, "unsplash,dalle,gemini"},
		{providers.SourceGemini, chain, "gemini,unsplash,dalle"},
		{providers.SourceDallE, chain, "dalle,unsplash,gemini"},
		{providers.SourceUnsplash, chain[1:], "dalle,gemini"},
		{providers.SourceGemini, nil, ""},
	}
	for _, tt := range tests {
		got := Candidates(Placeholder{PreferredSource: tt.preferred}, tt.chain)
		var names []string
		for _, s := range got {
			names = append(names, string(s))
		}
		if strings.Join(names, ",") != tt.want {
			t.Errorf("Candidates(%q, %v) = %v, want %s", tt.preferred, tt.chain, names, tt.want)
		}
	}
}

func TestResolveSkipsWithoutCredentials(t *testing.T) {
	r := &Resolver{Images: &recordingImages{}}
	res, err := r.Resolve(context.Background(), layout)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !res.Skipped || res.ImageCount != 0 || res.HTML != layout || res.Reason == "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestResolveSkipsWithoutPlaceholders(t *testing.T) {
	r := &Resolver{Images: &recordingImages{}, Available: available(providers.SourceUnsplash)}
	res, err := r.Resolve(context.Background(), "<div>plain</div>")
	if err != nil || !res.Skipped || res.HTML != "<div>plain</div>" {
		t.Fatalf("unexpected result %+v %v", res, err)
	}
}

func TestResolveCoercesUnavailablePreferredSource(t *testing.T) {
	images := &recordingImages{}
	r := &Resolver{Images: images, Available: available(providers.SourceDallE)}
	res, err := r.Resolve(context.Background(), layout)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if res.ImageCount != 4 || res.Skipped {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := images.callsFor("Mountain lake at dawn"); len(got) != 1 || got[0] != "dalle" {
		t.Fatalf("unsplash preference should be coerced to dalle, got %v", got)
	}
	if strings.Contains(res.HTML, "data-placeholder") {
		t.Fatalf("all placeholders should be replaced: %s", res.HTML)
	}
}

func TestResolveFallsBackInPriorityOrder(t *testing.T) {
	images := &recordingImages{fail: map[providers.ImageSource]bool{providers.SourceGemini: true}, empty: map[providers.ImageSource]bool{providers.SourceUnsplash: true}}
	r := &Resolver{Images: images, Available: available(providers.SourceUnsplash, providers.SourceDallE, providers.SourceGemini)}
	res, err := r.Resolve(context.Background(), layout)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if res.ImageCount != 4 {
		t.Fatalf("expected all placeholders resolved via dalle, got %+v", res)
	}
	if got := strings.Join(images.callsFor("Abstract & bold"), ","); got != "gemini,unsplash,dalle" {
		t.Fatalf("gemini-preferred placeholder tried %s", got)
	}
	if got := strings.Join(images.callsFor("Team portrait"), ","); got != "unsplash,dalle" {
		t.Fatalf("default placeholder tried %s", got)
	}
}

func TestResolveExhaustionLeavesHTMLUnchanged(t *testing.T) {
	images := &recordingImages{fail: map[providers.ImageSource]bool{providers.SourceUnsplash: true, providers.SourceDallE: true}}
	r := &Resolver{Images: images, Available: available(providers.SourceUnsplash, providers.SourceDallE)}
	res, err := r.Resolve(context.Background(), layout)
	if err != nil {
		t.Fatalf("exhaustion must not error: %v", err)
	}
	if res.HTML != layout || res.ImageCount != 0 || res.Skipped {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, desc := range []string{"Mountain lake at dawn", "Team portrait", "Abstract & bold", "Self closing"} {
		if got := images.callsFor(desc); len(got) != 2 {
			t.Fatalf("%s: expected each source tried once, got %v", desc, got)
		}
	}
}

func TestResolveBoundsConcurrency(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 7; i++ {
		fmt.Fprintf(&b, `<div data-placeholder="p%d" data-ph-w="10" data-ph-h="10"></div>`, i)
	}
	images := &recordingImages{delay: 20 * time.Millisecond}
	r := &Resolver{Images: images, Available: available(providers.SourceGemini)}
	res, err := r.Resolve(context.Background(), b.String())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if res.ImageCount != 7 {
		t.Fatalf("expected 7 images, got %d", res.ImageCount)
	}
	if peak := atomic.LoadInt32(&images.peak); peak > DefaultBatchSize {
		t.Fatalf("peak concurrency %d exceeds batch size", peak)
	}
	images.mu.Lock()
	defer images.mu.Unlock()
	firstBatch := map[string]bool{}
	for _, c := range images.calls[:3] {
		firstBatch[c] = true
	}
	for _, want := range []string{"gemini:p0", "gemini:p1", "gemini:p2"} {
		if !firstBatch[want] {
			t.Fatalf("batch order violated: %v", images.calls)
		}
	}
}

func TestResolveCancellation(t *testing.T) {
	images := &recordingImages{delay: time.Second}
	r := &Resolver{Images: images, Available: available(providers.SourceUnsplash, providers.SourceDallE)}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := r.Resolve(ctx, layout)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
