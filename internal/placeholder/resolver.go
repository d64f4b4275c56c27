// internal/placeholder/resolver.go
package placeholder

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/providers"
)

// DefaultBatchSize bounds concurrent image requests per frame.
const DefaultBatchSize = 3

var tracer = otel.Tracer("atelier/placeholder")

// Result is the outcome of resolving one layout's placeholders.
type Result struct {
	HTML         string
	ImageCount   int
	Placeholders int
	Skipped      bool
	Reason       string
}

// Resolver resolves placeholders against a set of image sources.
type Resolver struct {
	// Images serves every source in Available.
	Images providers.ImageGenerator
	// Available is the set of sources with a configured credential.
	Available map[providers.ImageSource]bool
	// BatchSize is the number of placeholders resolved concurrently. Zero means DefaultBatchSize.
	BatchSize int
	// Frame tags log lines.
	Frame int
}

// Chain returns the fallback chain: available sources in fixed priority order.
func (r *Resolver) Chain() []providers.ImageSource {
	return providers.OrderedSources(r.Available)
}

// Candidates returns the sources tried for p, in order. The placeholder's own
// source comes first when available, otherwise the chain's default; the rest of
// the chain follows in priority order.
func Candidates(p Placeholder, chain []providers.ImageSource) []providers.ImageSource {
	if len(chain) == 0 {
		return nil
	}
	primary := chain[0]
	for _, s := range chain {
		if s == p.PreferredSource {
			primary = s
			break
		}
	}
	out := make([]providers.ImageSource, 0, len(chain))
	out = append(out, primary)
	for _, s := range chain {
		if s != primary {
			out = append(out, s)
		}
	}
	return out
}

// Resolve parses src, resolves each placeholder, and composites the images.
// Individual provider failures are absorbed; the only error returned is
// cancellation of ctx.
func (r *Resolver) Resolve(ctx context.Context, src string) (Result, error) {
	ctx, span := tracer.Start(ctx, "placeholder_resolve")
	defer span.End()

	chain := r.Chain()
	if len(chain) == 0 {
		return Result{HTML: src, Skipped: true, Reason: "no image provider credentials configured"}, nil
	}
	placeholders := Parse(src)
	span.SetAttributes(attribute.Int("placeholder.count", len(placeholders)), attribute.Int("placeholder.sources", len(chain)))
	if len(placeholders) == 0 {
		return Result{HTML: src, Skipped: true, Reason: "no image placeholders found"}, nil
	}

	batch := r.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	resolved := make([]*providers.Image, len(placeholders))
	for start := 0; start < len(placeholders); start += batch {
		end := start + batch
		if end > len(placeholders) {
			end = len(placeholders)
		}
		var g errgroup.Group
		for i := start; i < end; i++ {
			p := placeholders[i]
			g.Go(func() error {
				img, err := r.resolveOne(ctx, p, Candidates(p, chain))
				if err != nil {
					return err
				}
				resolved[p.Index] = img
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			return Result{}, err
		}
	}

	images := make(map[int]*providers.Image, len(resolved))
	for i, img := range resolved {
		if !img.Empty() {
			images[i] = img
		}
	}
	out, count := Composite(src, images)
	span.SetAttributes(attribute.Int("placeholder.resolved", count))

	res := Result{HTML: out, ImageCount: count, Placeholders: len(placeholders)}
	if count < len(placeholders) {
		res.Reason = fmt.Sprintf("%d of %d placeholders resolved", count, len(placeholders))
	}
	return res, nil
}

// resolveOne walks candidates until one returns a usable image. It returns an
// error only when ctx is cancelled.
func (r *Resolver) resolveOne(ctx context.Context, p Placeholder, candidates []providers.ImageSource) (*providers.Image, error) {
	for _, source := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := r.Images.GenerateImage(ctx, providers.ImageRequest{
			Source:      source,
			Description: p.Description,
			Query:       p.SearchQuery,
			Width:       p.Width,
			Height:      p.Height,
		})
		if err != nil {
			if providers.IsCancelled(err) {
				return nil, err
			}
			logging.LogStage(r.Frame, "images", "placeholder %d via %s failed: %v", p.Index, source, err)
			continue
		}
		if img.Empty() {
			logging.LogStage(r.Frame, "images", "placeholder %d via %s returned no image", p.Index, source)
			continue
		}
		return img, nil
	}
	logging.LogStage(r.Frame, "images", "placeholder %d unresolved after %d sources", p.Index, len(candidates))
	return nil, nil
}
