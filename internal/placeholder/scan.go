// internal/placeholder/scan.go
package placeholder

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mwiater/atelier/internal/providers"
)

const (
	attrDescription = "data-placeholder"
	attrWidth       = "data-ph-w"
	attrHeight      = "data-ph-h"
	attrSource      = "data-img-source"
	attrQuery       = "data-img-query"
)

// token is one tokenizer token with its byte span in the source.
type token struct {
	kind       html.TokenType
	tag        atom.Atom
	name       string
	start, end int
	attrs      map[string]string
}

// block is one placeholder element: its byte span and parsed attributes.
type block struct {
	start, end  int
	placeholder Placeholder
}

var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true, atom.Embed: true,
	atom.Hr: true, atom.Img: true, atom.Input: true, atom.Link: true, atom.Meta: true,
	atom.Source: true, atom.Track: true, atom.Wbr: true,
}

// tokenize splits src into tokens whose spans tile the input.
func tokenize(src string) []token {
	z := html.NewTokenizer(strings.NewReader(src))
	var (
		tokens []token
		offset int
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF && offset < len(src) {
				tokens = append(tokens, token{kind: html.TextToken, start: offset, end: len(src)})
			}
			return tokens
		}
		n := len(z.Raw())
		t := token{kind: tt, start: offset, end: offset + n}
		offset += n

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, hasAttr := z.TagName()
			t.name = string(name)
			t.tag = atom.Lookup(name)
			if hasAttr && tt != html.EndTagToken {
				t.attrs = map[string]string{}
				for {
					key, val, more := z.TagAttr()
					k := string(key)
					if _, dup := t.attrs[k]; !dup {
						t.attrs[k] = string(val)
					}
					if !more {
						break
					}
				}
			}
		}
		tokens = append(tokens, t)
	}
}

// scan locates placeholder blocks in document order. A block runs from the
// placeholder's start tag through its matching end tag, counting nested
// elements of the same name. Void, self-closing, and unclosed placeholders
// cover the start tag alone. Placeholders nested inside another block belong
// to that block and are not reported separately.
func scan(src string) []block {
	tokens := tokenize(src)
	var blocks []block
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.kind != html.StartTagToken && t.kind != html.SelfClosingTagToken {
			continue
		}
		p, ok := fromAttrs(t.attrs)
		if !ok {
			continue
		}
		p.Index = len(blocks)
		b := block{start: t.start, end: t.end, placeholder: p}

		if t.kind == html.StartTagToken && !voidElements[t.tag] {
			if j := matchingEnd(tokens, i); j > 0 {
				b.end = tokens[j].end
				i = j
			}
		}
		if b.end > len(src) {
			b.end = len(src)
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// matchingEnd returns the index of the end tag closing tokens[open], or -1.
func matchingEnd(tokens []token, open int) int {
	name := tokens[open].name
	depth := 1
	for j := open + 1; j < len(tokens); j++ {
		t := tokens[j]
		if t.name != name {
			continue
		}
		switch t.kind {
		case html.StartTagToken:
			depth++
		case html.EndTagToken:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// fromAttrs builds a Placeholder when the required attributes are present and
// the dimensions are positive integers.
func fromAttrs(attrs map[string]string) (Placeholder, bool) {
	if attrs == nil {
		return Placeholder{}, false
	}
	desc, ok := attrs[attrDescription]
	if !ok {
		return Placeholder{}, false
	}
	w, okW := dimension(attrs[attrWidth])
	h, okH := dimension(attrs[attrHeight])
	if !okW || !okH {
		return Placeholder{}, false
	}
	p := Placeholder{
		Description: strings.TrimSpace(desc),
		Width:       w,
		Height:      h,
		SearchQuery: strings.TrimSpace(attrs[attrQuery]),
	}
	if src, ok := providers.ParseImageSource(attrs[attrSource]); ok {
		p.PreferredSource = src
	}
	return p, true
}

func dimension(v string) (int, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
