// ABOUTME: Markdown rendering for formatted Matrix replies
// ABOUTME: Line breaks are kept as hard breaks so multi-line replies stay readable

package matrix

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps()))

// renderMarkdown converts text to HTML. Raw HTML in text is not passed through.
func renderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
