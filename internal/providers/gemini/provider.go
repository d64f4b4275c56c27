// internal/providers/gemini/provider.go
// Package gemini provides text and image generation backed by the Gemini API
// through google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/providers"
)

const (
	name = "gemini"
	// orientationThreshold is the side ratio beyond which a non-square aspect hint is sent.
	orientationThreshold = 1.3
)

var tracer = otel.Tracer("atelier/providers/gemini")

// Provider implements providers.TextGenerator and providers.ImageGenerator.
// The underlying client is created on first use.
type Provider struct {
	apiKey     string
	baseURL    string
	imageModel string
	httpClient *http.Client

	once    sync.Once
	client  *genai.Client
	initErr error
}

// New constructs a Provider from the configured Gemini key.
func New(cfg *appconfig.Config) *Provider {
	return &Provider{
		apiKey:     strings.TrimSpace(cfg.Credentials.Gemini),
		baseURL:    strings.TrimRight(cfg.Endpoints.Gemini, "/"),
		imageModel: cfg.ImageModel(),
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
	}
}

func (p *Provider) genaiClient(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, providers.MissingCredential(name)
	}
	p.once.Do(func() {
		clientCfg := &genai.ClientConfig{
			APIKey:     p.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: p.httpClient,
		}
		if p.baseURL != "" {
			clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
		}
		p.client, p.initErr = genai.NewClient(ctx, clientCfg)
	})
	if p.initErr != nil {
		return nil, providers.NewError(name, providers.ErrUpstream, "create client: %w", p.initErr)
	}
	return p.client, nil
}

// GenerateText calls models.generateContent with the system prompt as system instruction.
func (p *Provider) GenerateText(ctx context.Context, req providers.TextRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "gemini_generate_text")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", req.Model))

	client, err := p.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	logging.LogRequest("ATELIER->LLM", name, req.Model, "generateContent", req.UserContent)

	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.UserContent), config)
	if err != nil {
		span.RecordError(err)
		return "", classify(err)
	}
	out := resp.Text()
	if strings.TrimSpace(out) == "" {
		return "", providers.NewError(name, providers.ErrUpstream, "empty completion")
	}
	logging.LogRequest("LLM->ATELIER", name, req.Model, "", out)
	return out, nil
}

// GenerateImage asks the image model for one picture and returns the first inline image part.
func (p *Provider) GenerateImage(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
	ctx, span := tracer.Start(ctx, "gemini_generate_image")
	defer span.End()

	client, err := p.genaiClient(ctx)
	if err != nil {
		return nil, err
	}

	ratio := aspectRatio(req.Width, req.Height)
	span.SetAttributes(attribute.String("image.aspect_ratio", ratio), attribute.String("llm.model", p.imageModel))
	prompt := imagePrompt(req.Description, ratio)
	logging.LogRequest("ATELIER->IMG", name, p.imageModel, ratio, prompt)

	resp, err := client.Models.GenerateContent(ctx, p.imageModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		span.RecordError(err)
		return nil, classify(err)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return &providers.Image{Data: part.InlineData.Data, MIMEType: mime}, nil
			}
		}
	}
	return nil, nil
}

// aspectRatio maps a placeholder's dimensions onto the aspect hint sent to the image model.
func aspectRatio(width, height int) string {
	switch providers.Bucket(width, height, orientationThreshold) {
	case providers.Landscape:
		return "16:9"
	case providers.Portrait:
		return "9:16"
	default:
		return "1:1"
	}
}

func imagePrompt(description, ratio string) string {
	return fmt.Sprintf("Generate a single high-quality image with a %s aspect ratio, no text or watermarks: %s", ratio, strings.TrimSpace(description))
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return providers.StatusError(name, "generateContent", apiErr.Code, apiErr.Status, []byte(apiErr.Message))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return providers.StatusError(name, "generateContent", apiErrPtr.Code, apiErrPtr.Status, []byte(apiErrPtr.Message))
	}
	return providers.Wrap(name, err)
}
