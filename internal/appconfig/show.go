package appconfig

import (
	"fmt"
	"io"
	"strings"
)

// ShowConfig prints the current configuration summary. Credentials are masked.
func ShowConfig(out io.Writer, file string, cfg *Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	if cfg == nil {
		cfg = &Config{}
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Model:           %s (%s)\n", cfg.TextModel(), TextVendor(cfg.TextModel()))
	fmt.Fprintf(out, "  Max Tokens:      %d\n", cfg.MaxTokensOrDefault())
	fmt.Fprintf(out, "  Frames:          %d\n", cfg.FrameCount())
	fmt.Fprintf(out, "  Quick Mode:      %v\n", cfg.QuickMode)
	fmt.Fprintf(out, "  Review:          %v\n", !cfg.DisableReview)
	fmt.Fprintf(out, "  Timeout:         %s\n", cfg.RequestTimeout())
	fmt.Fprintf(out, "  Debug:           %v\n", cfg.Debug)
	fmt.Fprintf(out, "  Metrics:         %v\n", cfg.Metrics)
	if len(cfg.Concepts) > 0 {
		fmt.Fprintf(out, "  Concepts:        %s\n", strings.Join(cfg.Concepts, " | "))
	}
	fmt.Fprintln(out, "  Credentials:")
	fmt.Fprintf(out, "    anthropic:     %s\n", maskSecret(cfg.Credentials.Anthropic))
	fmt.Fprintf(out, "    openai:        %s\n", maskSecret(cfg.Credentials.OpenAI))
	fmt.Fprintf(out, "    gemini:        %s\n", maskSecret(cfg.Credentials.Gemini))
	fmt.Fprintf(out, "    unsplash:      %s\n", maskSecret(cfg.Credentials.Unsplash))
	if cfg.Cache.RedisAddr != "" {
		fmt.Fprintf(out, "  Image Cache:     redis://%s/%d (ttl %s)\n", cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.ImageCacheTTL())
	}
	fmt.Fprintf(out, "  Output Dir:      %s\n", cfg.OutputDir())
	if cfg.MinioEnabled() {
		fmt.Fprintf(out, "  Object Store:    %s/%s\n", cfg.Storage.MinioEndpoint, cfg.Storage.MinioBucket)
	}
}

func maskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "…" + secret[len(secret)-4:]
	}
}
