package convert

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// A4 page geometry in points, with the layout constants shared by the
// line-oriented converters. The vertical cursor is measured from the page
// bottom, so "y < bottom" means the next line would cross the bottom margin.
const (
	pageWidth  = 595.28
	pageHeight = 841.89

	marginX = 40.0

	textTop        = pageHeight - 40
	textBottom     = 40.0
	textLineHeight = 14.0
	maxLineRunes   = 100

	sheetTop        = 800.0
	sheetBottom     = 50.0
	sheetLineHeight = 16.0
	sheetMaxRows    = 100
	sheetMaxCols    = 6
	sheetCellRunes  = 15
	sheetCellWidth  = 90.0

	csvMaxFields = 5
	csvSeparator = " | "
)

// pageWriter lays lines of text onto consecutive A4 pages with a fixed
// vertical cadence.
type pageWriter struct {
	pdf    *fpdf.Fpdf
	y      float64
	top    float64
	bottom float64
	step   float64
}

func newPageWriter(top, bottom, step float64) *pageWriter {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	return &pageWriter{pdf: pdf, y: top, top: top, bottom: bottom, step: step}
}

// breakPage starts a new page when the cursor has crossed the bottom margin.
// Called before drawing, matching the check-then-draw pagination policy.
func (w *pageWriter) breakPage() {
	if w.y < w.bottom {
		w.pdf.AddPage()
		w.y = w.top
	}
}

// line draws one full-width line at the left margin and advances the cursor.
func (w *pageWriter) line(text string) {
	w.breakPage()
	w.draw(marginX, text)
	w.advance()
}

// draw places text at x with the current vertical cursor, converting from
// bottom-origin to fpdf's top-origin coordinates.
func (w *pageWriter) draw(x float64, text string) {
	w.pdf.Text(x, pageHeight-w.y, text)
}

func (w *pageWriter) advance() {
	w.y -= w.step
}

func (w *pageWriter) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	return buf.Bytes(), nil
}

// truncateRunes caps a line at n runes so overlong input cannot run off the
// right edge of the page.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
