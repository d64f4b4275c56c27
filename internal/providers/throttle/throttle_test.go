package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/mwiater/atelier/internal/providers"
)

func TestNewImagesDisabledReturnsWrapped(t *testing.T) {
	gen := providers.ImageGeneratorFunc(func(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
		return &providers.Image{URL: "x"}, nil
	})
	if _, ok := NewImages(gen, 0, 0).(*Images); ok {
		t.Fatal("expected passthrough when rate is disabled")
	}
}

func TestGenerateImageHonoursCancellation(t *testing.T) {
	calls := 0
	gen := providers.ImageGeneratorFunc(func(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
		calls++
		return &providers.Image{URL: "x"}, nil
	})
	limited := NewImages(gen, 1, 1)

	if _, err := limited.GenerateImage(context.Background(), providers.ImageRequest{}); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := limited.GenerateImage(ctx, providers.ImageRequest{Source: providers.SourceDallE}); err == nil {
		t.Fatal("expected error when waiting with a cancelled context")
	}
	if calls != 1 {
		t.Fatalf("expected 1 forwarded call, got %d", calls)
	}
}

func TestSourcesHaveSeparateBuckets(t *testing.T) {
	calls := map[providers.ImageSource]int{}
	gen := providers.ImageGeneratorFunc(func(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
		calls[req.Source]++
		return &providers.Image{URL: "x"}, nil
	})
	// One call per minute with a burst of one: a second call on the same source must wait.
	limited := NewImages(gen, 1, 1)

	if _, err := limited.GenerateImage(context.Background(), providers.ImageRequest{Source: providers.SourceUnsplash}); err != nil {
		t.Fatalf("unsplash call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for _, src := range []providers.ImageSource{providers.SourceDallE, providers.SourceGemini} {
		if _, err := limited.GenerateImage(ctx, providers.ImageRequest{Source: src}); err != nil {
			t.Fatalf("%s should not wait on unsplash's bucket: %v", src, err)
		}
	}
	if _, err := limited.GenerateImage(ctx, providers.ImageRequest{Source: providers.SourceUnsplash}); err == nil {
		t.Fatal("second unsplash call should be throttled")
	}
	if calls[providers.SourceUnsplash] != 1 || calls[providers.SourceDallE] != 1 || calls[providers.SourceGemini] != 1 {
		t.Fatalf("forwarded calls = %v", calls)
	}
}
