package storage

import (
	"context"

	"github.com/pdfmill/pdfmill/pkg/model"
)

// Store defines the persistence layer for usage counters and the conversion
// audit trail.
type Store interface {
	// ReserveUsage atomically increments the (client, day) counter if doing so
	// would not exceed limit. It returns true when the reservation was granted.
	// Reservation and increment are a single step; there is no separate commit.
	ReserveUsage(ctx context.Context, client, day string, limit int) (bool, error)

	// UsageCount returns the current counter for (client, day). A missing
	// counter reads as zero.
	UsageCount(ctx context.Context, client, day string) (int, error)

	// RecordConversion appends an immutable audit record.
	RecordConversion(ctx context.Context, record *model.ConversionRecord) error

	// QueryConversions retrieves audit records matching the given filter,
	// newest first.
	QueryConversions(ctx context.Context, filter model.ReportFilter) ([]model.ConversionRecord, error)

	// AggregateConversions returns conversion totals for the given filter.
	AggregateConversions(ctx context.Context, filter model.ReportFilter) (*model.ConversionSummary, error)

	// Close releases resources.
	Close() error
}
