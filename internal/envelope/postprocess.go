package envelope

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxFrameHeight is the tallest inline height a frame may declare, in pixels.
const MaxFrameHeight = 800

var heightDecl = regexp.MustCompile(`(?i)(^|[\s;{"'])((?:min-)?height)\s*:\s*(\d+(?:\.\d+)?)(px|vh)`)

// CapHeights rewrites oversized height and min-height declarations. Pixel values
// above MaxFrameHeight become a max-height cap with hidden overflow; 100vh becomes
// height:auto with the same cap. max-height and line-height are never touched.
func CapHeights(html string) string {
	matches := heightDecl.FindAllStringSubmatchIndex(html, -1)
	if len(matches) == 0 {
		return html
	}

	capDecl := "max-height:" + strconv.Itoa(MaxFrameHeight) + "px; overflow:hidden"
	var b strings.Builder
	b.Grow(len(html))
	last := 0
	for _, m := range matches {
		declStart, declEnd := m[4], m[1]
		value, unit := html[m[6]:m[7]], strings.ToLower(html[m[8]:m[9]])
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		var replacement string
		switch {
		case unit == "px" && n > MaxFrameHeight:
			replacement = capDecl
		case unit == "vh" && n == 100:
			replacement = "height:auto; " + capDecl
		default:
			continue
		}
		b.WriteString(html[last:declStart])
		b.WriteString(replacement)
		last = declEnd
	}
	b.WriteString(html[last:])
	return b.String()
}
