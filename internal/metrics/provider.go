// internal/metrics/provider.go
package metrics

import (
	"context"
	"time"

	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/providers"
)

// TextProvider is a decorator that wraps a TextGenerator to record metrics.
type TextProvider struct {
	wrapped    providers.TextGenerator
	aggregator *Aggregator
}

// NewTextProvider creates a metrics-enabled provider that wraps an existing TextGenerator.
func NewTextProvider(wrapped providers.TextGenerator, aggregator *Aggregator) *TextProvider {
	logging.LogEvent("[METRICS] Wrapping text provider with metrics provider")
	return &TextProvider{wrapped: wrapped, aggregator: aggregator}
}

// GenerateText times the wrapped call and records its outcome under "text/<model>".
func (p *TextProvider) GenerateText(ctx context.Context, req providers.TextRequest) (string, error) {
	start := time.Now()
	out, err := p.wrapped.GenerateText(ctx, req)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	if p.aggregator != nil {
		p.aggregator.Record("text/"+req.Model, time.Since(start), outcome)
	}
	return out, err
}

// ImageProvider is a decorator that wraps an ImageGenerator to record metrics.
type ImageProvider struct {
	wrapped    providers.ImageGenerator
	aggregator *Aggregator
}

// NewImageProvider creates a metrics-enabled provider that wraps an existing ImageGenerator.
func NewImageProvider(wrapped providers.ImageGenerator, aggregator *Aggregator) *ImageProvider {
	logging.LogEvent("[METRICS] Wrapping image provider with metrics provider")
	return &ImageProvider{wrapped: wrapped, aggregator: aggregator}
}

// GenerateImage times the wrapped call and records its outcome under "image/<source>".
func (p *ImageProvider) GenerateImage(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
	start := time.Now()
	img, err := p.wrapped.GenerateImage(ctx, req)
	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeFailure
	case img.Empty():
		outcome = OutcomeEmpty
	}
	if p.aggregator != nil {
		p.aggregator.Record("image/"+string(req.Source), time.Since(start), outcome)
	}
	return img, err
}
