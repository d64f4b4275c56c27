// internal/imagecache/cache.go

// Package imagecache memoizes resolved images in Redis so repeated placeholders
// (same source, description, query and size) skip the provider round trip.
// Cache errors never fail a generation; they are logged and the provider is called.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/providers"
)

const keyPrefix = "atelier:image:"

// Cache wraps an ImageGenerator with a Redis lookaside cache.
type Cache struct {
	client  *redis.Client
	wrapped providers.ImageGenerator
	ttl     time.Duration
}

type entry struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime,omitempty"`
}

// New returns a Cache using client. The caller owns client.
func New(client *redis.Client, wrapped providers.ImageGenerator, ttl time.Duration) *Cache {
	return &Cache{client: client, wrapped: wrapped, ttl: ttl}
}

// Dial connects to addr and verifies the server responds to PING.
func Dial(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// GenerateImage returns a cached image when present; otherwise it calls the
// wrapped generator and stores a non-empty result.
func (c *Cache) GenerateImage(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
	key := Key(req)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var e entry
		if jerr := json.Unmarshal(raw, &e); jerr == nil {
			img := &providers.Image{URL: e.URL, Data: e.Data, MIMEType: e.MIMEType}
			if !img.Empty() {
				logging.LogEvent("[CACHE] hit %s source=%s", key, req.Source)
				return img, nil
			}
		}
	case !errors.Is(err, redis.Nil):
		logging.LogEvent("[CACHE] get %s failed: %v", key, err)
	}

	img, err := c.wrapped.GenerateImage(ctx, req)
	if err != nil || img.Empty() {
		return img, err
	}

	payload, jerr := json.Marshal(entry{URL: img.URL, Data: img.Data, MIMEType: img.MIMEType})
	if jerr == nil {
		if serr := c.client.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			logging.LogEvent("[CACHE] set %s failed: %v", key, serr)
		}
	}
	return img, nil
}

// Key derives the cache key for req.
func Key(req providers.ImageRequest) string {
	normalized := strings.Join([]string{
		string(req.Source),
		strings.ToLower(strings.TrimSpace(req.Description)),
		strings.ToLower(strings.TrimSpace(req.Query)),
		fmt.Sprintf("%dx%d", req.Width, req.Height),
	}, "\x00")
	sum := sha256.Sum256([]byte(normalized))
	return keyPrefix + hex.EncodeToString(sum[:16])
}
