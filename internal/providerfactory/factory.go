// internal/providerfactory/factory.go
package providerfactory

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/imagecache"
	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/metrics"
	"github.com/mwiater/atelier/internal/pipeline"
	"github.com/mwiater/atelier/internal/providers"
	"github.com/mwiater/atelier/internal/providers/anthropic"
	"github.com/mwiater/atelier/internal/providers/gemini"
	"github.com/mwiater/atelier/internal/providers/multiplex"
	"github.com/mwiater/atelier/internal/providers/ollama"
	"github.com/mwiater/atelier/internal/providers/openai"
	"github.com/mwiater/atelier/internal/providers/throttle"
	"github.com/mwiater/atelier/internal/providers/unsplash"
)

// imageBurst is the token-bucket burst allowed per image source.
const imageBurst = 3

// Set is the provider graph for one configuration.
type Set struct {
	Text      providers.TextGenerator
	Images    providers.ImageGenerator
	Available map[providers.ImageSource]bool

	redis *redis.Client
}

// Close releases connections held by the set.
func (s *Set) Close() error {
	if s == nil || s.redis == nil {
		return nil
	}
	return s.redis.Close()
}

// Sequencer returns a pipeline sequencer that uses the set's providers.
func (s *Set) Sequencer(cfg *appconfig.Config) *pipeline.Sequencer {
	return pipeline.New(cfg, s.Text, s.Images, s.Available)
}

// New builds the text router and the image chain described by cfg. Image
// sources without a credential are left out of the chain. A configured Redis
// cache that cannot be reached is logged and skipped.
func New(ctx context.Context, cfg *appconfig.Config) (*Set, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to provider factory")
	}

	set := &Set{}
	set.Text = newText(cfg)

	router := multiplex.NewImages(imageSources(cfg))
	set.Available = router.Available()

	var images providers.ImageGenerator = router
	images = throttle.NewImages(images, cfg.ImageRatePerMinute, imageBurst)

	if addr := strings.TrimSpace(cfg.Cache.RedisAddr); addr != "" && len(set.Available) > 0 {
		client, err := imagecache.Dial(ctx, addr, cfg.Cache.RedisDB)
		if err != nil {
			logging.LogEvent("image cache unavailable: %v", err)
		} else {
			set.redis = client
			images = imagecache.New(client, images, cfg.ImageCacheTTL())
			logging.LogEvent("image cache ready: redis %s (ttl %s)", addr, cfg.ImageCacheTTL())
		}
	}

	if cfg.Metrics {
		images = metrics.NewImageProvider(images, metrics.GetInstance())
	}
	set.Images = images

	logging.LogEvent("providers ready: text=%s images=%v", appconfig.TextVendor(cfg.TextModel()), providers.OrderedSources(set.Available))
	return set, nil
}

func newText(cfg *appconfig.Config) providers.TextGenerator {
	var text providers.TextGenerator = multiplex.NewText(map[string]providers.TextGenerator{
		"anthropic": anthropic.New(cfg),
		"openai":    openai.New(cfg),
		"gemini":    gemini.New(cfg),
		"ollama":    ollama.New(cfg),
	})
	if cfg.Metrics {
		text = metrics.NewTextProvider(text, metrics.GetInstance())
	}
	return text
}

// imageSources registers one generator per image source that has a credential.
func imageSources(cfg *appconfig.Config) map[providers.ImageSource]providers.ImageGenerator {
	out := map[providers.ImageSource]providers.ImageGenerator{}
	if strings.TrimSpace(cfg.Credentials.Unsplash) != "" {
		out[providers.SourceUnsplash] = unsplash.New(cfg)
	}
	if strings.TrimSpace(cfg.Credentials.OpenAI) != "" {
		out[providers.SourceDallE] = openai.New(cfg)
	}
	if strings.TrimSpace(cfg.Credentials.Gemini) != "" {
		out[providers.SourceGemini] = gemini.New(cfg)
	}
	return out
}
