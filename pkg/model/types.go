package model

import "time"

// TargetFormat is the only output format the service produces.
const TargetFormat = "pdf"

// DayFormat is the calendar-day key layout used by the usage ledger.
const DayFormat = "2006-01-02"

// UsageCounter tracks conversions performed by one client on one calendar day.
// There is exactly one counter per (client, day) pair.
type UsageCounter struct {
	Client string `json:"client" db:"client"`
	Day    string `json:"day" db:"day"`
	Count  int    `json:"count" db:"count"`
}

// ConversionRecord is the immutable audit entry written for every successful
// conversion. Records are append-only and never mutated or deleted.
type ConversionRecord struct {
	ID           string    `json:"id" db:"id"`
	Client       string    `json:"client" db:"client"`
	Filename     string    `json:"filename" db:"filename"`
	SourceFormat string    `json:"source_format" db:"source_format"`
	TargetFormat string    `json:"target_format" db:"target_format"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// ConversionRequest carries one upload through the dispatcher. It lives only
// for the duration of a single orchestration call.
type ConversionRequest struct {
	Client   string
	Filename string
	Content  []byte
}

// ConversionResult is the outcome of a successful conversion. Ownership of
// the PDF bytes passes to the caller on return.
type ConversionResult struct {
	PDF        []byte
	OutputName string
	Record     *ConversionRecord
}

// ReportPeriod defines the time window for audit reports.
type ReportPeriod string

const (
	PeriodDaily   ReportPeriod = "daily"
	PeriodWeekly  ReportPeriod = "weekly"
	PeriodMonthly ReportPeriod = "monthly"
)

// ReportFilter controls which conversion records are included in queries.
type ReportFilter struct {
	Client       string    `json:"client,omitempty"`
	SourceFormat string    `json:"source_format,omitempty"`
	StartTime    time.Time `json:"start_time,omitempty"`
	EndTime      time.Time `json:"end_time,omitempty"`
	Limit        int       `json:"limit,omitempty"`
}

// ConversionSummary holds aggregated audit statistics.
type ConversionSummary struct {
	TotalConversions int64            `json:"total_conversions"`
	ByFormat         map[string]int64 `json:"by_format,omitempty"`
	ByClient         map[string]int64 `json:"by_client,omitempty"`
}

// Today returns the current UTC calendar-day key.
func Today() string {
	return time.Now().UTC().Format(DayFormat)
}

// PeriodBounds returns the start and end time for the current period.
func PeriodBounds(period ReportPeriod) (start, end time.Time) {
	now := time.Now().UTC()
	switch period {
	case PeriodWeekly:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start = time.Date(now.Year(), now.Month(), now.Day()-weekday+1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 7)
	case PeriodMonthly:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	default:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 1)
	}
	return start, end
}
