// internal/appconfig/appconfig.go
// Package appconfig defines the application configuration and the defaults
// applied when a setting is left empty. The commands package fills it from
// viper.
package appconfig

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// DefaultModel is the text model used when the config does not name one.
	DefaultModel = "claude-sonnet-4-20250514"
	// DefaultGeminiImageModel generates images when the Gemini source is configured.
	DefaultGeminiImageModel = "gemini-2.5-flash-image"
	// defaultRequestTimeout is the default timeout for HTTP requests.
	defaultRequestTimeout = 300 * time.Second
	// defaultMaxTokens bounds layout and review completions when unset.
	defaultMaxTokens = 8192
	// defaultFrames is the number of frames generated per invocation when unset.
	defaultFrames = 4
	// maxFrames caps a single invocation.
	maxFrames = 12
	// defaultImageCacheTTL is how long resolved images stay in the Redis cache.
	defaultImageCacheTTL = 24 * time.Hour
	// defaultServerAddr is the listen address for the HTTP service.
	defaultServerAddr = ":8080"
	// defaultOutputDir receives frames written by the local sink.
	defaultOutputDir = "frames"
)

// Config represents the top-level application configuration.
type Config struct {
	Model              string        `json:"model,omitempty"`
	MaxTokens          int           `json:"maxTokens,omitempty"`
	Frames             int           `json:"frames,omitempty"`
	QuickMode          bool          `json:"quickMode"`
	DisableReview      bool          `json:"disableReview"`
	Concepts           []string      `json:"concepts,omitempty"`
	CustomInstructions string        `json:"customInstructions,omitempty"`
	Credentials        Credentials   `json:"credentials"`
	Endpoints          Endpoints     `json:"endpoints"`
	GeminiImageModel   string        `json:"geminiImageModel,omitempty"`
	TimeoutSeconds     int           `json:"timeout,omitempty"`
	ImageRatePerMinute int           `json:"imageRatePerMinute,omitempty"`
	LogFile            string        `json:"logFile,omitempty"`
	Debug              bool          `json:"debug"`
	Metrics            bool          `json:"metrics"`
	Cache              CacheConfig   `json:"cache"`
	Storage            StorageConfig `json:"storage"`
	ServerAddr         string        `json:"serverAddr,omitempty"`
	ConfigPath         string        `json:"-"`
}

// Credentials holds the API keys for every provider the pipeline can call.
// An empty key means the provider is not configured.
type Credentials struct {
	Anthropic string `json:"anthropic,omitempty"`
	OpenAI    string `json:"openai,omitempty"`
	Gemini    string `json:"gemini,omitempty"`
	Unsplash  string `json:"unsplash,omitempty"`
}

// Endpoints overrides provider base URLs. Empty values select the vendor default.
type Endpoints struct {
	Anthropic string `json:"anthropic,omitempty"`
	OpenAI    string `json:"openai,omitempty"`
	Gemini    string `json:"gemini,omitempty"`
	Ollama    string `json:"ollama,omitempty"`
	Unsplash  string `json:"unsplash,omitempty"`
}

// CacheConfig configures the optional Redis-backed image cache.
type CacheConfig struct {
	RedisAddr  string `json:"redisAddr,omitempty"`
	RedisDB    int    `json:"redisDB,omitempty"`
	TTLSeconds int    `json:"ttl,omitempty"`
}

// StorageConfig selects where finished frames are written.
type StorageConfig struct {
	OutputDir      string `json:"outputDir,omitempty"`
	MinioEndpoint  string `json:"minioEndpoint,omitempty"`
	MinioAccessKey string `json:"minioAccessKey,omitempty"`
	MinioSecretKey string `json:"minioSecretKey,omitempty"`
	MinioBucket    string `json:"minioBucket,omitempty"`
	MinioUseSSL    bool   `json:"minioUseSSL"`
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TextModel returns the configured text model identifier or the default.
func (c Config) TextModel() string {
	if m := strings.TrimSpace(c.Model); m != "" {
		return m
	}
	return DefaultModel
}

// ImageModel returns the Gemini model used for image generation.
func (c Config) ImageModel() string {
	if m := strings.TrimSpace(c.GeminiImageModel); m != "" {
		return m
	}
	return DefaultGeminiImageModel
}

// MaxTokensOrDefault returns the completion token limit for layout and review calls.
func (c Config) MaxTokensOrDefault() int {
	if c.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return c.MaxTokens
}

// FrameCount returns the number of frames to generate, applying the default when unset.
func (c Config) FrameCount() int {
	if c.Frames <= 0 {
		return defaultFrames
	}
	return c.Frames
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "atelier.log"
}

// ImageCacheTTL returns how long cached images remain valid.
func (c Config) ImageCacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return defaultImageCacheTTL
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// ListenAddr returns the HTTP service address.
func (c Config) ListenAddr() string {
	if addr := strings.TrimSpace(c.ServerAddr); addr != "" {
		return addr
	}
	return defaultServerAddr
}

// OutputDir returns the directory used by the local frame sink.
func (c Config) OutputDir() string {
	if dir := strings.TrimSpace(c.Storage.OutputDir); dir != "" {
		return dir
	}
	return defaultOutputDir
}

// MinioEnabled reports whether frames should also be uploaded to an object store.
func (c Config) MinioEnabled() bool {
	return strings.TrimSpace(c.Storage.MinioEndpoint) != "" && strings.TrimSpace(c.Storage.MinioBucket) != ""
}

// TextVendor classifies a model identifier into the provider family that serves it.
// Identifiers that match no hosted family are routed to a local Ollama endpoint.
func TextVendor(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "claude"):
		return "anthropic"
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "chatgpt"),
		strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "openai"
	case strings.HasPrefix(m, "gemini"):
		return "gemini"
	default:
		return "ollama"
	}
}

// Validate reports configuration that would make every generate call fail.
func (c Config) Validate() error {
	if c.Frames < 0 || c.Frames > maxFrames {
		return fmt.Errorf("frames must be between 1 and %d, got %d", maxFrames, c.Frames)
	}
	var missing string
	switch TextVendor(c.TextModel()) {
	case "anthropic":
		if strings.TrimSpace(c.Credentials.Anthropic) == "" {
			missing = "anthropic"
		}
	case "openai":
		if strings.TrimSpace(c.Credentials.OpenAI) == "" {
			missing = "openai"
		}
	case "gemini":
		if strings.TrimSpace(c.Credentials.Gemini) == "" {
			missing = "gemini"
		}
	}
	if missing != "" {
		return fmt.Errorf("model %q requires a %s API key", c.TextModel(), missing)
	}
	return nil
}
