package convert

import (
	"context"
	"strings"
)

// TextConverter paginates plain text line by line onto A4 pages.
type TextConverter struct{}

// NewTextConverter creates a plain-text converter.
func NewTextConverter() *TextConverter {
	return &TextConverter{}
}

func (c *TextConverter) Name() string { return "text" }

func (c *TextConverter) Convert(_ context.Context, src []byte) ([]byte, error) {
	return renderLines(splitLines(string(src)))
}

// renderLines applies the plain-text pagination policy: 14pt line height,
// 40pt margins, lines truncated at 100 runes. Shared with the markdown
// converter, which feeds it the plain-rendered intermediate form.
func renderLines(lines []string) ([]byte, error) {
	w := newPageWriter(textTop, textBottom, textLineHeight)
	for _, line := range lines {
		w.line(truncateRunes(line, maxLineRunes))
	}
	return w.bytes()
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	// A trailing newline does not produce an extra blank line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
