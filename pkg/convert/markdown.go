package convert

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// MarkdownConverter renders markdown to an intermediate plain text form
// (structural markup stripped to inline text per line) and then applies the
// plain-text pagination policy.
type MarkdownConverter struct {
	md goldmark.Markdown
}

// NewMarkdownConverter creates a markdown converter with GFM extensions.
func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

func (c *MarkdownConverter) Name() string { return "markdown" }

func (c *MarkdownConverter) Convert(_ context.Context, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}

	lines := splitLines(buf.String())
	for i, line := range lines {
		lines[i] = stripTags(line)
	}
	return renderLines(lines)
}

// stripTags removes HTML elements from one rendered line, leaving only the
// inline text, and decodes entity references.
func stripTags(line string) string {
	var b strings.Builder
	inTag := false
	for _, r := range line {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}
