package providers

import "strings"

// ImageSource names an image provider.
type ImageSource string

const (
	SourceUnsplash ImageSource = "unsplash"
	SourceDallE    ImageSource = "dalle"
	SourceGemini   ImageSource = "gemini"
)

// SourcePriority is the fixed global order used for default selection and fallback.
var SourcePriority = []ImageSource{SourceUnsplash, SourceDallE, SourceGemini}

// ParseImageSource normalizes a markup value such as "DALL-E" or " unsplash ".
func ParseImageSource(value string) (ImageSource, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.NewReplacer("-", "", "_", "", "·", "", " ", "").Replace(v)
	switch v {
	case "unsplash":
		return SourceUnsplash, true
	case "dalle", "dalle3", "openai":
		return SourceDallE, true
	case "gemini", "imagen":
		return SourceGemini, true
	}
	return "", false
}

// OrderedSources filters SourcePriority down to the members of available, preserving priority order.
func OrderedSources(available map[ImageSource]bool) []ImageSource {
	out := make([]ImageSource, 0, len(SourcePriority))
	for _, s := range SourcePriority {
		if available[s] {
			out = append(out, s)
		}
	}
	return out
}
