package convert

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
)

// CSVConverter renders delimited text: the header row is consumed, then up to
// 100 data rows are drawn with at most 5 fields each, joined by a visible
// separator, using the workbook pagination policy.
type CSVConverter struct{}

// NewCSVConverter creates a delimited-text converter.
func NewCSVConverter() *CSVConverter {
	return &CSVConverter{}
}

func (c *CSVConverter) Name() string { return "csv" }

func (c *CSVConverter) Convert(_ context.Context, src []byte) ([]byte, error) {
	r := csv.NewReader(bytes.NewReader(src))
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse csv: %v", ErrBadInput, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty csv", ErrBadInput)
	}

	// First row is the header; only data rows are rendered.
	data := rows[1:]
	if len(data) > sheetMaxRows {
		data = data[:sheetMaxRows]
	}

	w := newPageWriter(sheetTop, sheetBottom, sheetLineHeight)
	for _, row := range data {
		if len(row) > csvMaxFields {
			row = row[:csvMaxFields]
		}
		w.breakPage()
		w.draw(marginX, strings.Join(row, csvSeparator))
		w.advance()
	}
	return w.bytes()
}
