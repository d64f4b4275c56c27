// internal/envelope/envelope.go

// Package envelope converts raw model output into frame HTML and back.
//
// Decode strips markdown fences, extracts the leading size sentinel
// (<!--size:WIDTHxHEIGHT-->) and trims prose around the outermost structural
// tags. SubstituteImages swaps embedded base64 images for short tokens before
// HTML is sent to a model, and the returned Restorer puts them back.
package envelope

import (
	"regexp"
	"strconv"
	"strings"
)

// LayoutResult is decoded model output. A nil Width or Height means the model
// did not declare one and the frame is sized automatically.
type LayoutResult struct {
	HTML   string
	Width  *int
	Height *int
	// Markup is false when the output was prose with no leading tag, such as a
	// refusal or a "looks good" reply. HTML then holds that prose.
	Markup bool
}

var (
	openingFence = regexp.MustCompile("^```[ \t]*(?i:html)?[ \t]*\r?\n?")
	closingFence = regexp.MustCompile("\r?\n?[ \t]*```[ \t]*$")
	sizeSentinel = regexp.MustCompile(`<!--size:(\d+)x(\d+)-->[ \t]*\r?\n?`)
	leadingTag   = regexp.MustCompile(`^<[A-Za-z!]`)

	structuralOpen  = []string{"<!doctype", "<html", "<head", "<style", "<div", "<section", "<main", "<body", "<meta", "<link"}
	structuralClose = []string{"</html>", "</div>", "</section>", "</main>", "</body>"}
)

// Decode reduces raw model text to HTML plus optional declared dimensions.
// Already-clean HTML is returned unchanged apart from surrounding whitespace.
func Decode(raw string) LayoutResult {
	s := strings.TrimSpace(raw)
	s = stripFence(s)

	var result LayoutResult
	// The sentinel may lead the body or sit in prose before the first structural tag.
	if m := sizeSentinel.FindStringSubmatchIndex(s); m != nil && m[0] <= firstStructural(asciiLower(s)) {
		if w, err := strconv.Atoi(s[m[2]:m[3]]); err == nil && w > 0 {
			result.Width = &w
		}
		if h, err := strconv.Atoi(s[m[4]:m[5]]); err == nil && h > 0 {
			result.Height = &h
		}
		s = s[:m[0]] + s[m[1]:]
	}

	result.HTML = strings.TrimSpace(trimToStructure(strings.TrimSpace(s)))
	result.Markup = leadingTag.MatchString(result.HTML)
	return result
}

// stripFence removes one leading and one trailing triple-backtick fence.
func stripFence(s string) string {
	if loc := openingFence.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
		if loc := closingFence.FindStringIndex(s); loc != nil {
			s = s[:loc[0]]
		}
		return strings.TrimSpace(s)
	}
	if loc := closingFence.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.TrimSpace(s)
}

// trimToStructure drops text before the first structural opening tag and after
// the last structural closing tag. Input without structural tags is returned as is.
func trimToStructure(s string) string {
	lower := asciiLower(s)

	start := firstStructural(lower)
	if start > 0 && start < len(s) {
		s = s[start:]
		lower = lower[start:]
	}

	end := -1
	for _, tag := range structuralClose {
		if i := strings.LastIndex(lower, tag); i >= 0 && i+len(tag) > end {
			end = i + len(tag)
		}
	}
	if end > 0 && end < len(s) {
		s = s[:end]
	}
	return s
}

// firstStructural returns the offset of the first structural opening tag in
// lower, or len(lower) when there is none.
func firstStructural(lower string) int {
	start := len(lower)
	for _, tag := range structuralOpen {
		if i := strings.Index(lower, tag); i >= 0 && i < start {
			start = i
		}
	}
	return start
}

// asciiLower lowercases A-Z only, so byte offsets match the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
