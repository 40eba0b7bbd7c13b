// Package convert renders uploaded documents onto paginated PDF output.
// Each converter handles one format family and knows nothing about quotas
// or auditing; failures are reported as errors, never as panics.
package convert

import (
	"context"
	"errors"
)

// ErrBadInput indicates the source bytes could not be parsed as the format
// the converter handles (corrupt upload, wrong encoding, truncated file).
var ErrBadInput = errors.New("unreadable source document")

// Converter renders one source format's content to PDF bytes.
type Converter interface {
	// Name identifies the converter family for logging and audit entries.
	Name() string

	// Convert renders src to a PDF document. The context carries the
	// per-conversion deadline and must be honored by converters that block.
	Convert(ctx context.Context, src []byte) ([]byte, error)
}
