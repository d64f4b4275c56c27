// internal/providers/provider.go

// Package providers defines the interfaces for interacting with text and image
// generation providers. It provides a common abstraction layer for request
// construction, response extraction, and error classification, regardless of the
// underlying vendor (e.g., Anthropic, OpenAI, Gemini, Ollama, Unsplash).
//
// No implementation retries. Retry and fallback policy belongs to callers.
package providers

import (
	"context"
	"encoding/base64"
)

// TextRequest carries a single-turn completion request.
type TextRequest struct {
	SystemPrompt string
	UserContent  string
	Model        string
	MaxTokens    int
}

// ImageRequest describes one image to produce or fetch.
// Width and Height are the placeholder's pixel dimensions and drive aspect bucketing.
type ImageRequest struct {
	Source      ImageSource
	Description string
	Query       string
	Width       int
	Height      int
}

// Image is a resolved image. Remote providers set URL; generative providers set
// Data and MIMEType.
type Image struct {
	URL      string
	Data     []byte
	MIMEType string
}

// Empty reports whether the image carries nothing usable.
func (i *Image) Empty() bool {
	return i == nil || (i.URL == "" && len(i.Data) == 0)
}

// Src returns the value for an <img src> attribute: the remote URL or a base64 data URI.
func (i *Image) Src() string {
	if i == nil {
		return ""
	}
	if i.URL != "" {
		return i.URL
	}
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// TextGenerator is implemented by every text model provider.
type TextGenerator interface {
	// GenerateText sends one system prompt and user turn and returns the model's text.
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// ImageGenerator is implemented by every image provider. A nil image with a nil
// error is an empty response and callers treat it as a failure.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*Image, error)
}

// TextGeneratorFunc adapts a function to TextGenerator.
type TextGeneratorFunc func(ctx context.Context, req TextRequest) (string, error)

// GenerateText calls f.
func (f TextGeneratorFunc) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	return f(ctx, req)
}

// ImageGeneratorFunc adapts a function to ImageGenerator.
type ImageGeneratorFunc func(ctx context.Context, req ImageRequest) (*Image, error)

// GenerateImage calls f.
func (f ImageGeneratorFunc) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	return f(ctx, req)
}
