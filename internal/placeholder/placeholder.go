// internal/placeholder/placeholder.go

// Package placeholder finds image placeholders in layout HTML, resolves each one
// against the configured image providers, and composites the results back.
//
// A placeholder is any element carrying data-placeholder, data-ph-w and
// data-ph-h, optionally data-img-source and data-img-query. Placeholders are
// identified only by their ordinal position. Parse and Composite share one
// tokenizer-based scanner, so the n-th placeholder reported by Parse is the
// n-th block Composite rewrites.
package placeholder

import (
	"fmt"
	"html"
	"strings"

	"github.com/mwiater/atelier/internal/providers"
)

// BorderRadius is applied to every composited image.
const BorderRadius = "8px"

// Placeholder is one image request parsed from layout HTML.
type Placeholder struct {
	Index           int
	Description     string
	Width           int
	Height          int
	PreferredSource providers.ImageSource
	SearchQuery     string
}

// Parse returns the placeholders in document order.
func Parse(src string) []Placeholder {
	blocks := scan(src)
	out := make([]Placeholder, len(blocks))
	for i, b := range blocks {
		out[i] = b.placeholder
	}
	return out
}

// Composite replaces the n-th placeholder block with an <img> for every n in
// images. Blocks without an entry are left byte-identical. It returns the new
// HTML and the number of blocks replaced.
func Composite(src string, images map[int]*providers.Image) (string, int) {
	if len(images) == 0 {
		return src, 0
	}
	blocks := scan(src)
	var (
		b        strings.Builder
		last     int
		replaced int
	)
	b.Grow(len(src))
	for _, blk := range blocks {
		img, ok := images[blk.placeholder.Index]
		if !ok || img.Empty() {
			continue
		}
		b.WriteString(src[last:blk.start])
		b.WriteString(imgTag(blk.placeholder, img.Src()))
		last = blk.end
		replaced++
	}
	b.WriteString(src[last:])
	return b.String(), replaced
}

func imgTag(p Placeholder, src string) string {
	return fmt.Sprintf(`<img src="%s" alt="%s" style="width:%dpx;height:%dpx;object-fit:cover;border-radius:%s;display:block">`,
		html.EscapeString(src), html.EscapeString(p.Description), p.Width, p.Height, BorderRadius)
}
