// Package throttle wraps an image provider with one token bucket per image source.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mwiater/atelier/internal/providers"
)

// Images limits GenerateImage calls per ImageSource. Falling back from one
// source to the next draws from the next source's bucket only.
type Images struct {
	wrapped providers.ImageGenerator
	every   rate.Limit
	burst   int

	mu       sync.Mutex
	limiters map[providers.ImageSource]*rate.Limiter
}

// NewImages allows perMinute calls per minute and source with a burst of burst.
// A non-positive perMinute returns wrapped unchanged.
func NewImages(wrapped providers.ImageGenerator, perMinute, burst int) providers.ImageGenerator {
	if perMinute <= 0 {
		return wrapped
	}
	if burst <= 0 {
		burst = 1
	}
	return &Images{
		wrapped:  wrapped,
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: map[providers.ImageSource]*rate.Limiter{},
	}
}

func (i *Images) limiter(src providers.ImageSource) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	l, ok := i.limiters[src]
	if !ok {
		l = rate.NewLimiter(i.every, i.burst)
		i.limiters[src] = l
	}
	return l
}

// GenerateImage waits for a token from req.Source's bucket, then forwards the
// call. Waiting honours ctx.
func (i *Images) GenerateImage(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
	if err := i.limiter(req.Source).Wait(ctx); err != nil {
		return nil, providers.Wrap(string(req.Source), err)
	}
	return i.wrapped.GenerateImage(ctx, req)
}
