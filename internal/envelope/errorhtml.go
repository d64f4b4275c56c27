package envelope

import (
	"fmt"
	"html"
	"strings"
)

// ErrorHTML renders a self-contained artifact that stands in for a failed frame.
func ErrorHTML(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "Unknown error"
	}
	return fmt.Sprintf(`<div data-frame-error="true" style="display:flex;align-items:center;justify-content:center;width:100%%;min-height:240px;padding:24px;box-sizing:border-box;font-family:system-ui,-apple-system,sans-serif;background:#fff5f5;color:#9b1c1c;border:1px dashed #f5a3a3;border-radius:8px"><div><strong>Generation failed</strong><p style="margin:8px 0 0;font-size:14px">%s</p></div></div>`, html.EscapeString(message))
}
