// internal/providers/anthropic/provider.go
// Package anthropic provides a TextGenerator backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/providers"
)

const (
	name             = "anthropic"
	defaultBaseURL   = "https://api.anthropic.com"
	maxTokensDefault = 4096
)

var tracer = otel.Tracer("atelier/providers/anthropic")

// Provider implements providers.TextGenerator using the /v1/messages endpoint.
type Provider struct {
	client  anthropic.Client
	baseURL string
	apiKey  string
}

// New constructs a Provider configured with the application's credentials and request timeout.
// Retries are left to the caller, so the client makes a single attempt.
func New(cfg *appconfig.Config) *Provider {
	baseURL := strings.TrimRight(cfg.Endpoints.Anthropic, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiKey := strings.TrimSpace(cfg.Credentials.Anthropic)
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		option.WithMaxRetries(0),
	)
	return &Provider{client: client, baseURL: baseURL, apiKey: apiKey}
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateText sends one user turn and returns the concatenated text blocks of the reply.
func (p *Provider) GenerateText(ctx context.Context, req providers.TextRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "anthropic_messages")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", req.Model), attribute.Int("llm.max_tokens", req.MaxTokens))

	if p.apiKey == "" {
		return "", providers.MissingCredential(name)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = maxTokensDefault
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserContent))},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	logging.LogRequest("ATELIER->LLM", name, req.Model, "", params)

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		err = classify(err)
		span.RecordError(err)
		return "", err
	}
	logging.LogRequest("LLM->ATELIER", name, req.Model, string(msg.StopReason), msg.RawJSON())

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", providers.NewError(name, providers.ErrUpstream, "empty completion (stop_reason=%s)", stopReason(msg.StopReason))
	}
	span.SetAttributes(attribute.Int("llm.response_chars", out.Len()))
	return out.String(), nil
}

// classify maps SDK errors onto provider error kinds, preferring the
// message from the API's error envelope as the detail.
func classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return providers.Wrap(name, err)
	}
	detail := []byte(apiErr.RawJSON())
	var envelope errorResponse
	if json.Unmarshal(detail, &envelope) == nil && envelope.Error.Message != "" {
		detail = []byte(envelope.Error.Message)
	}
	return providers.StatusError(name, "/v1/messages", apiErr.StatusCode, http.StatusText(apiErr.StatusCode), detail)
}

func stopReason(s anthropic.StopReason) string {
	if s == "" {
		return "none"
	}
	return string(s)
}
