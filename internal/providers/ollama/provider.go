// internal/providers/ollama/provider.go
// Package ollama provides a TextGenerator backed by an Ollama-compatible HTTP endpoint.
// It serves any model identifier that no hosted vendor claims.
package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/providers"
)

const (
	name           = "ollama"
	defaultBaseURL = "http://localhost:11434"
)

var tracer = otel.Tracer("atelier/providers/ollama")

// Provider implements providers.TextGenerator using the /api/chat endpoint.
type Provider struct {
	client  *api.Client
	baseURL string
}

// New constructs a Provider configured with the application's request timeout.
// An unparseable endpoint falls back to the local default.
func New(cfg *appconfig.Config) *Provider {
	baseURL := strings.TrimRight(cfg.Endpoints.Ollama, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		logging.LogEvent("ollama: invalid endpoint %q, using %s", baseURL, defaultBaseURL)
		baseURL = defaultBaseURL
		base, _ = url.Parse(defaultBaseURL)
	}
	httpClient := &http.Client{
		Timeout:   cfg.RequestTimeout(),
		Transport: &http.Transport{ForceAttemptHTTP2: false},
	}
	return &Provider{client: api.NewClient(base, httpClient), baseURL: baseURL}
}

// GenerateText issues a non-streaming chat request and returns the assistant message.
func (p *Provider) GenerateText(ctx context.Context, req providers.TextRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "ollama_chat")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", req.Model))

	messages := []api.Message{{Role: "user", Content: req.UserContent}}
	if req.SystemPrompt != "" {
		messages = append([]api.Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}
	stream := false
	chatReq := &api.ChatRequest{Model: req.Model, Messages: messages, Stream: &stream}
	if req.MaxTokens > 0 {
		chatReq.Options = map[string]any{"num_predict": req.MaxTokens}
	}
	logging.LogRequest("ATELIER->LLM", name, req.Model, "", chatReq)

	var content strings.Builder
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		err = classify("/api/chat", err)
		span.RecordError(err)
		return "", err
	}
	out := content.String()
	logging.LogRequest("LLM->ATELIER", name, req.Model, "", out)
	if strings.TrimSpace(out) == "" {
		return "", providers.NewError(name, providers.ErrUpstream, "empty completion")
	}
	return out, nil
}

// ListModels returns the names of the models installed on the endpoint via /api/tags.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, classify("/api/tags", err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// classify maps client errors onto provider error kinds. Error bodies the
// client reports as plain errors are upstream failures.
func classify(endpoint string, err error) error {
	var status api.StatusError
	if errors.As(err, &status) {
		text := status.Status
		if text == "" {
			text = http.StatusText(status.StatusCode)
		}
		return providers.StatusError(name, endpoint, status.StatusCode, text, []byte(status.ErrorMessage))
	}
	return providers.Wrap(name, err)
}
