package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfmill/pdfmill/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Store interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	// SQLite permits a single writer; funneling all statements through one
	// connection keeps concurrent reservations from surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// ReserveUsage grants one quota unit for (client, day) unless the counter has
// already reached limit. The insert-or-increment is a single statement, so the
// read-modify-write cannot interleave with a competing reservation.
func (s *SQLite) ReserveUsage(ctx context.Context, client, day string, limit int) (bool, error) {
	if client == "" || day == "" {
		return false, errors.New("usage reservation requires client and day")
	}
	if limit < 1 {
		return false, nil
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_counters (client, day, count) VALUES (?, ?, 1)
		 ON CONFLICT(client, day) DO UPDATE SET count = count + 1 WHERE count < ?`,
		client, day, limit,
	)
	if err != nil {
		return false, fmt.Errorf("reserve usage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *SQLite) UsageCount(ctx context.Context, client, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM usage_counters WHERE client = ? AND day = ?`,
		client, day,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage counter: %w", err)
	}
	return count, nil
}

func (s *SQLite) RecordConversion(ctx context.Context, record *model.ConversionRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.TargetFormat == "" {
		record.TargetFormat = model.TargetFormat
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (id, client, filename, source_format, target_format, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.Client, record.Filename,
		record.SourceFormat, record.TargetFormat, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert conversion record: %w", err)
	}
	return nil
}

func (s *SQLite) QueryConversions(ctx context.Context, filter model.ReportFilter) ([]model.ConversionRecord, error) {
	query := "SELECT id, client, filename, source_format, target_format, timestamp FROM conversions"
	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()

	var records []model.ConversionRecord
	for rows.Next() {
		var r model.ConversionRecord
		if err := rows.Scan(&r.ID, &r.Client, &r.Filename, &r.SourceFormat,
			&r.TargetFormat, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan conversion row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLite) AggregateConversions(ctx context.Context, filter model.ReportFilter) (*model.ConversionSummary, error) {
	query := "SELECT COUNT(*) FROM conversions"
	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}

	summary := &model.ConversionSummary{}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&summary.TotalConversions); err != nil {
		return nil, fmt.Errorf("aggregate conversions: %w", err)
	}

	var err error
	summary.ByFormat, err = s.aggregateByField(ctx, "source_format", where, args)
	if err != nil {
		return nil, err
	}

	summary.ByClient, err = s.aggregateByField(ctx, "client", where, args)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

func (s *SQLite) aggregateByField(ctx context.Context, field, where string, args []any) (map[string]int64, error) {
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM conversions", field)
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" GROUP BY %s", field)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate by %s: %w", field, err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var name string
		var total int64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("scan %s aggregate: %w", field, err)
		}
		result[name] = total
	}
	return result, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// buildWhereClause constructs a SQL WHERE clause from a ReportFilter.
func buildWhereClause(filter model.ReportFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.Client != "" {
		conditions = append(conditions, "client = ?")
		args = append(args, filter.Client)
	}
	if filter.SourceFormat != "" {
		conditions = append(conditions, "source_format = ?")
		args = append(args, filter.SourceFormat)
	}
	if !filter.StartTime.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, filter.EndTime)
	}

	return strings.Join(conditions, " AND "), args
}
