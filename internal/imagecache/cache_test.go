package imagecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mwiater/atelier/internal/providers"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestCacheHitSkipsProvider(t *testing.T) {
	client, mr := setupTestRedis(t)
	calls := 0
	gen := providers.ImageGeneratorFunc(func(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
		calls++
		return &providers.Image{Data: []byte("png-bytes"), MIMEType: "image/png"}, nil
	})
	cache := New(client, gen, time.Hour)
	req := providers.ImageRequest{Source: providers.SourceDallE, Description: "Sunset", Width: 400, Height: 300}

	first, err := cache.GenerateImage(context.Background(), req)
	if err != nil {
		t.Fatalf("first call error: %v", err)
	}
	second, err := cache.GenerateImage(context.Background(), providers.ImageRequest{Source: providers.SourceDallE, Description: " sunset ", Width: 400, Height: 300})
	if err != nil {
		t.Fatalf("second call error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", calls)
	}
	if string(first.Data) != string(second.Data) || second.MIMEType != "image/png" {
		t.Fatalf("cached image mismatch: %+v vs %+v", first, second)
	}
	ttl := mr.TTL(Key(req))
	if ttl != time.Hour {
		t.Fatalf("expected ttl of 1h, got %v", ttl)
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	client, mr := setupTestRedis(t)
	gen := providers.ImageGeneratorFunc(func(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
		if req.Query == "empty" {
			return nil, nil
		}
		return nil, errors.New("quota exceeded")
	})
	cache := New(client, gen, time.Minute)

	if _, err := cache.GenerateImage(context.Background(), providers.ImageRequest{Source: providers.SourceUnsplash, Query: "x"}); err == nil {
		t.Fatal("expected provider error to pass through")
	}
	if img, err := cache.GenerateImage(context.Background(), providers.ImageRequest{Source: providers.SourceUnsplash, Query: "empty"}); err != nil || img != nil {
		t.Fatalf("expected empty passthrough, got %+v %v", img, err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no cached keys, got %v", keys)
	}
}

func TestCacheFallsThroughWhenRedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()
	gen := providers.ImageGeneratorFunc(func(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
		return &providers.Image{URL: "https://img/1"}, nil
	})
	img, err := New(client, gen, time.Minute).GenerateImage(context.Background(), providers.ImageRequest{Source: providers.SourceUnsplash})
	if err != nil || img.URL != "https://img/1" {
		t.Fatalf("expected provider result despite redis outage, got %+v %v", img, err)
	}
}

func TestKeyDistinguishesSize(t *testing.T) {
	a := Key(providers.ImageRequest{Source: providers.SourceGemini, Description: "cat", Width: 100, Height: 100})
	b := Key(providers.ImageRequest{Source: providers.SourceGemini, Description: "cat", Width: 200, Height: 100})
	if a == b {
		t.Fatal("expected different keys for different sizes")
	}
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Dial(context.Background(), mr.Addr(), 0)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	_ = client.Close()
	if _, err := Dial(context.Background(), "127.0.0.1:1", 0); err == nil {
		t.Fatal("expected dial failure")
	}
}
