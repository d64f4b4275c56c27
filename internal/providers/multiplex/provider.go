// internal/providers/multiplex/provider.go
// Package multiplex routes text calls by model family and image calls by source.
package multiplex

import (
	"context"
	"strings"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/providers"
)

// Text delegates GenerateText to the provider registered for the model's vendor.
type Text struct {
	providers map[string]providers.TextGenerator
}

// NewText constructs a Text router from a map of vendor name to provider implementation.
func NewText(providerMap map[string]providers.TextGenerator) *Text {
	normalized := make(map[string]providers.TextGenerator, len(providerMap))
	for key, provider := range providerMap {
		normalized[normalizeVendor(key)] = provider
	}
	return &Text{providers: normalized}
}

// GenerateText forwards the request to the vendor that serves req.Model.
func (t *Text) GenerateText(ctx context.Context, req providers.TextRequest) (string, error) {
	provider, err := t.providerForModel(req.Model)
	if err != nil {
		return "", err
	}
	return provider.GenerateText(ctx, req)
}

func (t *Text) providerForModel(model string) (providers.TextGenerator, error) {
	vendor := normalizeVendor(appconfig.TextVendor(model))
	if provider, ok := t.providers[vendor]; ok {
		return provider, nil
	}
	return nil, providers.NewError(vendor, providers.ErrNotAvailable, "no text provider registered for model %q", model)
}

func normalizeVendor(vendor string) string {
	normalized := strings.ToLower(strings.TrimSpace(vendor))
	switch normalized {
	case "", "ollama", "local":
		return "ollama"
	case "claude":
		return "anthropic"
	case "gpt", "chatgpt":
		return "openai"
	default:
		return normalized
	}
}

// Images delegates GenerateImage to the provider registered for req.Source.
// Only sources with a configured credential should be registered.
type Images struct {
	providers map[providers.ImageSource]providers.ImageGenerator
}

// NewImages constructs an Images router. Nil generators are ignored.
func NewImages(providerMap map[providers.ImageSource]providers.ImageGenerator) *Images {
	registered := make(map[providers.ImageSource]providers.ImageGenerator, len(providerMap))
	for source, provider := range providerMap {
		if provider != nil {
			registered[source] = provider
		}
	}
	return &Images{providers: registered}
}

// GenerateImage forwards the request, or fails with ErrNotAvailable for an unregistered source.
func (i *Images) GenerateImage(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
	provider, ok := i.providers[req.Source]
	if !ok {
		return nil, providers.NewError(string(req.Source), providers.ErrNotAvailable, "no credential configured for %s", req.Source)
	}
	return provider.GenerateImage(ctx, req)
}

// Available returns the registered sources as a set.
func (i *Images) Available() map[providers.ImageSource]bool {
	out := make(map[providers.ImageSource]bool, len(i.providers))
	for source := range i.providers {
		out[source] = true
	}
	return out
}
