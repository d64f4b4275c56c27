// internal/providers/openai/provider.go
// Package openai provides chat completions and DALL·E 3 image generation through
// the go-openai client.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/providers"
)

const (
	name      = "openai"
	imageName = "dalle"
	// orientationThreshold is the side ratio beyond which DALL·E receives a non-square size.
	orientationThreshold = 1.3
)

var tracer = otel.Tracer("atelier/providers/openai")

// Provider implements providers.TextGenerator and providers.ImageGenerator.
type Provider struct {
	client *goopenai.Client
	apiKey string
}

// New constructs a Provider from the configured OpenAI key and optional base URL.
func New(cfg *appconfig.Config) *Provider {
	apiKey := strings.TrimSpace(cfg.Credentials.OpenAI)
	clientCfg := goopenai.DefaultConfig(apiKey)
	if base := strings.TrimRight(cfg.Endpoints.OpenAI, "/"); base != "" {
		clientCfg.BaseURL = base + "/v1"
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout()}
	return &Provider{client: goopenai.NewClientWithConfig(clientCfg), apiKey: apiKey}
}

// GenerateText runs a two-message chat completion and returns the first choice.
func (p *Provider) GenerateText(ctx context.Context, req providers.TextRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "openai_chat_completion")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", req.Model))

	if p.apiKey == "" {
		return "", providers.MissingCredential(name)
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: req.UserContent},
		},
	}
	if isReasoningModel(req.Model) {
		chatReq.MaxCompletionTokens = req.MaxTokens
	} else {
		chatReq.MaxTokens = req.MaxTokens
	}
	logging.LogRequest("ATELIER->LLM", name, req.Model, "chat", req.UserContent)

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		span.RecordError(err)
		return "", classify(name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", providers.NewError(name, providers.ErrUpstream, "empty completion")
	}
	out := resp.Choices[0].Message.Content
	logging.LogRequest("LLM->ATELIER", name, req.Model, string(resp.Choices[0].FinishReason), out)
	return out, nil
}

// GenerateImage requests a single DALL·E 3 image as base64 JSON.
func (p *Provider) GenerateImage(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
	ctx, span := tracer.Start(ctx, "openai_image_generation")
	defer span.End()

	if p.apiKey == "" {
		return nil, providers.MissingCredential(imageName)
	}

	size := imageSize(req.Width, req.Height)
	span.SetAttributes(attribute.String("image.size", size))
	prompt := req.Description
	if strings.TrimSpace(prompt) == "" {
		prompt = req.Query
	}
	logging.LogRequest("ATELIER->IMG", imageName, goopenai.CreateImageModelDallE3, size, prompt)

	resp, err := p.client.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         prompt,
		Model:          goopenai.CreateImageModelDallE3,
		N:              1,
		Size:           size,
		Quality:        goopenai.CreateImageQualityStandard,
		ResponseFormat: goopenai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		span.RecordError(err)
		return nil, classify(imageName, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, providers.NewError(imageName, providers.ErrUpstream, "decode b64_json: %w", err)
	}
	return &providers.Image{Data: data, MIMEType: "image/png"}, nil
}

// imageSize maps a placeholder's dimensions to one of DALL·E 3's supported sizes.
func imageSize(width, height int) string {
	switch providers.Bucket(width, height, orientationThreshold) {
	case providers.Landscape:
		return goopenai.CreateImageSize1792x1024
	case providers.Portrait:
		return goopenai.CreateImageSize1024x1792
	default:
		return goopenai.CreateImageSize1024x1024
	}
}

func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4")
}

// classify maps go-openai errors onto the provider error kinds.
func classify(provider string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return providers.StatusError(provider, "api", apiErr.HTTPStatusCode, http.StatusText(apiErr.HTTPStatusCode), []byte(apiErr.Message))
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return providers.StatusError(provider, "api", reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode), []byte(fmt.Sprint(reqErr.Err)))
	}
	return providers.Wrap(provider, err)
}
