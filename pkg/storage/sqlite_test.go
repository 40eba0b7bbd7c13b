package storage_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfmill/pdfmill/pkg/model"
	"github.com/pdfmill/pdfmill/pkg/storage"
)

func newTestDB(t *testing.T) *storage.SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_ReserveUsage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		granted, err := db.ReserveUsage(ctx, "10.0.0.1", "2025-06-01", 5)
		require.NoError(t, err)
		assert.True(t, granted, "reservation %d should be granted", i)
	}

	granted, err := db.ReserveUsage(ctx, "10.0.0.1", "2025-06-01", 5)
	require.NoError(t, err)
	assert.False(t, granted, "sixth reservation must be rejected")

	count, err := db.UsageCount(ctx, "10.0.0.1", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 5, count, "rejected reservation must not change the counter")
}

func TestSQLite_ReserveUsage_KeyIsolation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	granted, err := db.ReserveUsage(ctx, "10.0.0.1", "2025-06-02", 5)
	require.NoError(t, err)
	assert.True(t, granted)

	// Yesterday's counter and other clients are untouched.
	count, err := db.UsageCount(ctx, "10.0.0.1", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = db.UsageCount(ctx, "10.0.0.2", "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLite_ReserveUsage_ZeroLimit(t *testing.T) {
	db := newTestDB(t)

	granted, err := db.ReserveUsage(context.Background(), "10.0.0.1", "2025-06-01", 0)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestSQLite_ReserveUsage_Concurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	const attempts = 20
	const limit = 5

	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted, err := db.ReserveUsage(ctx, "10.0.0.9", "2025-06-01", limit)
			assert.NoError(t, err)
			results <- granted
		}()
	}
	wg.Wait()
	close(results)

	var granted int
	for ok := range results {
		if ok {
			granted++
		}
	}
	assert.Equal(t, limit, granted, "exactly limit reservations may be granted")

	count, err := db.UsageCount(ctx, "10.0.0.9", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, limit, count)
}

func TestSQLite_ReserveUsage_OneSlotLeft(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		granted, err := db.ReserveUsage(ctx, "10.0.0.4", "2025-06-01", 5)
		require.NoError(t, err)
		require.True(t, granted)
	}

	// Two concurrent requests racing for the last slot: exactly one wins.
	var wg sync.WaitGroup
	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted, err := db.ReserveUsage(ctx, "10.0.0.4", "2025-06-01", 5)
			assert.NoError(t, err)
			results <- granted
		}()
	}
	wg.Wait()
	close(results)

	var granted int
	for ok := range results {
		if ok {
			granted++
		}
	}
	assert.Equal(t, 1, granted)
}

func TestSQLite_RecordConversion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	record := &model.ConversionRecord{
		Client:       "10.0.0.1",
		Filename:     "report.docx",
		SourceFormat: "docx",
	}

	err := db.RecordConversion(ctx, record)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "pdf", record.TargetFormat)
	assert.False(t, record.Timestamp.IsZero())
}

func TestSQLite_QueryConversions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	records := []*model.ConversionRecord{
		{Client: "10.0.0.1", Filename: "a.txt", SourceFormat: "txt"},
		{Client: "10.0.0.1", Filename: "b.csv", SourceFormat: "csv"},
		{Client: "10.0.0.2", Filename: "c.txt", SourceFormat: "txt"},
	}
	for _, r := range records {
		require.NoError(t, db.RecordConversion(ctx, r))
	}

	all, err := db.QueryConversions(ctx, model.ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byClient, err := db.QueryConversions(ctx, model.ReportFilter{Client: "10.0.0.1"})
	require.NoError(t, err)
	assert.Len(t, byClient, 2)

	byFormat, err := db.QueryConversions(ctx, model.ReportFilter{SourceFormat: "csv"})
	require.NoError(t, err)
	assert.Len(t, byFormat, 1)

	limited, err := db.QueryConversions(ctx, model.ReportFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLite_QueryConversions_TimeFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	record := &model.ConversionRecord{
		Client:       "10.0.0.1",
		Filename:     "a.txt",
		SourceFormat: "txt",
		Timestamp:    now,
	}
	require.NoError(t, db.RecordConversion(ctx, record))

	results, err := db.QueryConversions(ctx, model.ReportFilter{
		StartTime: now.Add(-1 * time.Hour),
		EndTime:   now.Add(1 * time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = db.QueryConversions(ctx, model.ReportFilter{
		StartTime: now.Add(1 * time.Hour),
		EndTime:   now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, results, 0)
}

func TestSQLite_AggregateConversions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	records := []*model.ConversionRecord{
		{Client: "10.0.0.1", Filename: "a.txt", SourceFormat: "txt"},
		{Client: "10.0.0.1", Filename: "b.txt", SourceFormat: "txt"},
		{Client: "10.0.0.2", Filename: "c.png", SourceFormat: "png"},
	}
	for _, r := range records {
		require.NoError(t, db.RecordConversion(ctx, r))
	}

	summary, err := db.AggregateConversions(ctx, model.ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalConversions)
	assert.Equal(t, int64(2), summary.ByFormat["txt"])
	assert.Equal(t, int64(1), summary.ByFormat["png"])
	assert.Equal(t, int64(2), summary.ByClient["10.0.0.1"])
}

func TestSQLite_MigrationIdempotency(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	// Open and close twice to verify migration idempotency
	db1, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	db1.Close()

	db2, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	db2.Close()
}
