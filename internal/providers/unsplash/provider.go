// internal/providers/unsplash/provider.go
// Package unsplash provides an ImageGenerator that searches Unsplash for a stock photo.
package unsplash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/providers"
)

const (
	name           = "unsplash"
	defaultBaseURL = "https://api.unsplash.com"
	// orientationThreshold is the side ratio beyond which a non-squarish search is issued.
	orientationThreshold = 1.3
	maxQueryWords        = 6
)

var tracer = otel.Tracer("atelier/providers/unsplash")

// Provider implements providers.ImageGenerator using /search/photos.
type Provider struct {
	client    *http.Client
	baseURL   string
	accessKey string
}

// New constructs a Provider from the configured Unsplash access key.
func New(cfg *appconfig.Config) *Provider {
	baseURL := strings.TrimRight(cfg.Endpoints.Unsplash, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		client:    &http.Client{Timeout: cfg.RequestTimeout()},
		baseURL:   baseURL,
		accessKey: strings.TrimSpace(cfg.Credentials.Unsplash),
	}
}

type searchResponse struct {
	Total   int `json:"total"`
	Results []struct {
		ID             string `json:"id"`
		AltDescription string `json:"alt_description"`
		URLs           struct {
			Raw     string `json:"raw"`
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

// GenerateImage searches for the placeholder's query, or its description when no
// query was given, and returns the top result sized to the placeholder.
func (p *Provider) GenerateImage(ctx context.Context, req providers.ImageRequest) (*providers.Image, error) {
	ctx, span := tracer.Start(ctx, "unsplash_search")
	defer span.End()

	if p.accessKey == "" {
		return nil, providers.MissingCredential(name)
	}

	query := searchQuery(req)
	orientation := orientationParam(req.Width, req.Height)
	span.SetAttributes(attribute.String("unsplash.query", query), attribute.String("unsplash.orientation", orientation))

	params := url.Values{}
	params.Set("query", query)
	params.Set("orientation", orientation)
	params.Set("per_page", "1")
	endpoint := p.baseURL + "/search/photos?" + params.Encode()
	logging.LogRequest("ATELIER->IMG", name, "", orientation, endpoint)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Client-ID "+p.accessKey)
	httpReq.Header.Set("Accept-Version", "v1")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, providers.Wrap(name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.Wrap(name, err)
	}
	if resp.StatusCode != http.StatusOK {
		err := providers.StatusError(name, "/search/photos", resp.StatusCode, resp.Status, body)
		span.RecordError(err)
		return nil, err
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, providers.NewError(name, providers.ErrUpstream, "decode /search/photos response: %w", err)
	}
	if len(decoded.Results) == 0 {
		return nil, nil
	}
	photo := decoded.Results[0]
	src := photo.URLs.Regular
	if photo.URLs.Raw != "" && req.Width > 0 && req.Height > 0 {
		src = sizedURL(photo.URLs.Raw, req.Width, req.Height)
	}
	if src == "" {
		return nil, nil
	}
	return &providers.Image{URL: src}, nil
}

// orientationParam maps a placeholder's dimensions to an Unsplash orientation filter.
func orientationParam(width, height int) string {
	switch providers.Bucket(width, height, orientationThreshold) {
	case providers.Landscape:
		return "landscape"
	case providers.Portrait:
		return "portrait"
	default:
		return "squarish"
	}
}

func searchQuery(req providers.ImageRequest) string {
	if q := strings.TrimSpace(req.Query); q != "" {
		return q
	}
	words := strings.Fields(req.Description)
	if len(words) > maxQueryWords {
		words = words[:maxQueryWords]
	}
	return strings.Join(words, " ")
}

// sizedURL asks the Unsplash image CDN for a crop at twice the placeholder size.
func sizedURL(raw string, width, height int) string {
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sw=%d&h=%d&fit=crop&auto=format", raw, sep, width*2, height*2)
}
