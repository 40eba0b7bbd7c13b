package convert

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// WorkbookConverter renders the active sheet of a binary workbook onto A4
// pages: up to 100 rows and 6 columns, cell text truncated to 15 runes,
// columns on a 90pt cadence.
type WorkbookConverter struct{}

// NewWorkbookConverter creates a workbook converter.
func NewWorkbookConverter() *WorkbookConverter {
	return &WorkbookConverter{}
}

func (c *WorkbookConverter) Name() string { return "workbook" }

func (c *WorkbookConverter) Convert(_ context.Context, src []byte) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrBadInput, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrBadInput, sheet, err)
	}
	if len(rows) > sheetMaxRows {
		rows = rows[:sheetMaxRows]
	}

	w := newPageWriter(sheetTop, sheetBottom, sheetLineHeight)
	for _, row := range rows {
		w.breakPage()
		x := marginX
		for col, cell := range row {
			if col >= sheetMaxCols {
				break
			}
			w.draw(x, truncateRunes(cell, sheetCellRunes))
			x += sheetCellWidth
		}
		w.advance()
	}
	return w.bytes()
}
