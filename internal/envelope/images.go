package envelope

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	dataURISrc = regexp.MustCompile(`(?i:src)\s*=\s*(?:"(data:image/[^";,]+(?:;[^";,]+)*;base64,[^"]*)"|'(data:image/[^';,]+(?:;[^';,]+)*;base64,[^']*)')`)
	imageToken = regexp.MustCompile(`\[IMAGE_PLACEHOLDER_(\d+)\]`)
)

// Token returns the substitution token for ordinal n.
func Token(n int) string {
	return "[IMAGE_PLACEHOLDER_" + strconv.Itoa(n) + "]"
}

// Restorer maps substitution tokens back to the data URIs they replaced.
type Restorer struct {
	uris []string
}

// Len reports how many distinct payloads were substituted.
func (r Restorer) Len() int {
	return len(r.uris)
}

// Restore replaces every known token in s with its original data URI. Unknown
// tokens are left in place. Only token text is inspected, so surrounding
// markup may have been rewritten freely.
func (r Restorer) Restore(s string) string {
	if len(r.uris) == 0 {
		return s
	}
	return imageToken.ReplaceAllStringFunc(s, func(tok string) string {
		m := imageToken.FindStringSubmatch(tok)
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 0 || n >= len(r.uris) {
			return tok
		}
		return r.uris[n]
	})
}

// SubstituteImages replaces each base64 data URI in a src attribute with a
// numbered token. Ordinals follow first appearance starting at 0, and repeated
// payloads share a token. Quote style and attribute spacing are preserved.
func SubstituteImages(html string) (string, Restorer) {
	matches := dataURISrc.FindAllStringSubmatchIndex(html, -1)
	if len(matches) == 0 {
		return html, Restorer{}
	}

	var (
		b       strings.Builder
		uris    []string
		ordinal = map[string]int{}
		last    int
	)
	b.Grow(len(html))
	for _, m := range matches {
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		uri := html[start:end]
		n, seen := ordinal[uri]
		if !seen {
			n = len(uris)
			ordinal[uri] = n
			uris = append(uris, uri)
		}
		b.WriteString(html[last:start])
		b.WriteString(Token(n))
		last = end
	}
	b.WriteString(html[last:])
	return b.String(), Restorer{uris: uris}
}
