package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// OfficeRenderer is the external high-fidelity rendering capability for
// word-processor and presentation formats. Implementations preserve the
// original layout, tables and embedded images.
type OfficeRenderer interface {
	RenderPDF(ctx context.Context, src []byte, ext string) ([]byte, error)
}

// OfficeConverter delegates docx/pptx rendering to an OfficeRenderer and
// translates its failures into conversion errors.
type OfficeConverter struct {
	renderer OfficeRenderer
	ext      string
}

// NewOfficeConverter creates an office-document converter for one extension,
// backed by the given renderer.
func NewOfficeConverter(renderer OfficeRenderer, ext string) *OfficeConverter {
	return &OfficeConverter{renderer: renderer, ext: ext}
}

func (c *OfficeConverter) Name() string { return "office" }

func (c *OfficeConverter) Convert(ctx context.Context, src []byte) ([]byte, error) {
	out, err := c.renderer.RenderPDF(ctx, src, c.ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	return out, nil
}

// SofficeRenderer renders office documents with a headless LibreOffice
// process. The conversion context bounds the child process lifetime.
type SofficeRenderer struct {
	// Path to the soffice binary; "soffice" resolves via PATH.
	Path string
}

// NewSofficeRenderer creates a LibreOffice-backed renderer.
func NewSofficeRenderer(path string) *SofficeRenderer {
	if path == "" {
		path = "soffice"
	}
	return &SofficeRenderer{Path: path}
}

func (r *SofficeRenderer) RenderPDF(ctx context.Context, src []byte, ext string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "pdfmill-office-*")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input."+ext)
	if err := os.WriteFile(in, src, 0o600); err != nil {
		return nil, fmt.Errorf("write source document: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.Path,
		"--headless", "--norestore",
		"--convert-to", "pdf",
		"--outdir", dir,
		in,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("soffice: %w: %s", err, out)
	}

	pdf, err := os.ReadFile(filepath.Join(dir, "input.pdf"))
	if err != nil {
		return nil, fmt.Errorf("read rendered pdf: %w", err)
	}
	return pdf, nil
}
