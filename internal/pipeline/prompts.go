// internal/pipeline/prompts.go
package pipeline

import (
	"fmt"
	"strings"
)

// Style is a named visual direction for a frame.
type Style struct {
	Name      string
	Directive string
}

// DefaultStyles rotate across frames when no concepts are given.
var DefaultStyles = []Style{
	{Name: "Minimal", Directive: "Minimal and airy: generous whitespace, a restrained neutral palette with one accent color, crisp sans-serif typography."},
	{Name: "Bold", Directive: "Bold and editorial: oversized headlines, high contrast, strong color blocking, confident asymmetric composition."},
	{Name: "Warm", Directive: "Warm and approachable: soft rounded shapes, earthy tones, friendly humanist type, gentle shadows."},
	{Name: "Technical", Directive: "Technical and precise: grid-driven structure, monospace accents, cool palette, dense but orderly information."},
	{Name: "Playful", Directive: "Playful and vibrant: saturated gradients, expressive shapes, lively type pairings, a sense of motion."},
}

// StyleFor picks the style for frame index. A non-empty concept at that index
// replaces the built-in rotation.
func StyleFor(index int, concepts []string) Style {
	if index >= 0 && index < len(concepts) {
		if c := strings.TrimSpace(concepts[index]); c != "" {
			return Style{Name: c, Directive: c}
		}
	}
	if index < 0 {
		index = -index
	}
	return DefaultStyles[index%len(DefaultStyles)]
}

const layoutSystemPrompt = `You are a senior web designer producing a single self-contained HTML/CSS design frame.

Output rules:
- Return only HTML. Put all CSS in a <style> element or inline styles. No external assets or scripts.
- The first line must be a size comment of the exact form <!--size:WIDTHxHEIGHT--> giving the frame's pixel dimensions.
- Keep the frame at most 800px tall. Never use viewport units for heights.
- Where an image belongs, emit an element with data-placeholder="<image description>", data-ph-w="<width px>" and data-ph-h="<height px>".
  Optionally add data-img-source="unsplash|dalle|gemini" (unsplash for photographs, dalle or gemini for illustrations)
  and data-img-query="<two or three search keywords>". Use at most 6 placeholders.`

const revisionSystemPrompt = `You are editing an existing HTML/CSS design frame.
Apply ONLY the requested change. Preserve everything else exactly, including tokens of the form [IMAGE_PLACEHOLDER_n].
The first line must be a size comment of the exact form <!--size:WIDTHxHEIGHT-->. Return only HTML.`

const reviewSystemPrompt = `You are a meticulous design reviewer. Inspect the HTML/CSS frame and fix any issues with:
- typography (hierarchy, sizes, line height, contrast)
- spacing (padding, margins, alignment, rhythm)
- color (harmony, contrast, accessibility)
- layout (overflow, wrapping, balance)
- image sizing (aspect ratios, cropping, dimensions)
- overall polish
Preserve every [IMAGE_PLACEHOLDER_n] token exactly. If no issues are found, return the HTML unchanged.
The first line must be a size comment of the exact form <!--size:WIDTHxHEIGHT-->. Return only HTML.`

const critiqueSystemPrompt = `You are an art director. Write a short critique of the design frame as 3 to 5 bullet points.
Each bullet names one concrete improvement the next design should make. Return only the bullets.`

func layoutPrompt(req DesignRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Design request: %s\n", strings.TrimSpace(req.Prompt))
	if d := strings.TrimSpace(req.StyleDirective); d != "" {
		fmt.Fprintf(&b, "\nStyle direction: %s\n", d)
	}
	if c := strings.TrimSpace(req.CustomInstructions); c != "" {
		fmt.Fprintf(&b, "\nAdditional instructions: %s\n", c)
	}
	if f := strings.TrimSpace(req.CritiqueFeedback); f != "" {
		fmt.Fprintf(&b, "\nFeedback on the previous design. Address it in this one:\n%s\n", f)
	}
	return b.String()
}

func revisionPrompt(instruction, html string) string {
	return fmt.Sprintf("Requested change: %s\n\nCurrent HTML:\n%s", strings.TrimSpace(instruction), html)
}

func reviewPrompt(html string) string {
	return "Review this frame:\n" + html
}

func critiquePrompt(prompt, html string) string {
	return fmt.Sprintf("Design request: %s\n\nFrame HTML:\n%s", strings.TrimSpace(prompt), html)
}
