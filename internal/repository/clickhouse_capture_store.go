package repository

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"time"

	"FinCapture/internal/domain/models"
	domrepo "FinCapture/internal/domain/repository"
	pkgch "FinCapture/pkg/clickhouse"
	applogger "FinCapture/pkg/logger"
)

const chInsertChunk = 2000

// CHCaptureStore keeps the capture log in a ClickHouse MergeTree table.
type CHCaptureStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCaptureStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHCaptureStore {
	return &CHCaptureStore{db: ch.DB(), table: database + ".captures", l: l}
}

// CaptureSchema returns the idempotent DDL for the capture table.
func CaptureSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.captures (
			category    LowCardinality(String),
			symbol      String,
			captured_at DateTime64(9, 'UTC'),
			payload     String,
			inserted_at DateTime DEFAULT now()
		) ENGINE = MergeTree
		ORDER BY (category, symbol, captured_at)`, database),
	}
}

func (s *CHCaptureStore) Append(ctx context.Context, c models.Capture) error {
	return s.AppendBatch(ctx, []models.Capture{c})
}

// AppendBatch inserts captures as multi-row VALUES statements.
func (s *CHCaptureStore) AppendBatch(ctx context.Context, captures []models.Capture) error {
	for start := 0; start < len(captures); start += chInsertChunk {
		end := min(start+chInsertChunk, len(captures))
		chunk := captures[start:end]

		values := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*4)
		for _, c := range chunk {
			values = append(values, "(?, ?, ?, ?)")
			args = append(args, string(c.Category), c.Symbol.String(), c.CapturedAt.UTC(), string(c.Payload))
		}
		q := fmt.Sprintf("INSERT INTO %s (category, symbol, captured_at, payload) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse append error",
					applogger.String("table", s.table),
					applogger.Int("rows", len(chunk)),
					applogger.Error(err),
				)
			}
			return &models.StoreError{Op: "append", Category: chunk[0].Category, Err: err}
		}
	}
	return nil
}

func (s *CHCaptureStore) Read(ctx context.Context, category models.Category, symbol models.Symbol) iter.Seq2[models.Capture, error] {
	return s.ReadSince(ctx, category, symbol, time.Time{})
}

func (s *CHCaptureStore) ReadSince(ctx context.Context, category models.Category, symbol models.Symbol, since time.Time) iter.Seq2[models.Capture, error] {
	return func(yield func(models.Capture, error) bool) {
		start := time.Now()
		where := "category = ? AND symbol = ?"
		args := []any{string(category), symbol.String()}
		if !since.IsZero() {
			where += " AND captured_at >= ?"
			args = append(args, since.UTC())
		}
		q := fmt.Sprintf(`
			SELECT captured_at, payload
			FROM %s
			WHERE %s
			ORDER BY captured_at ASC`, s.table, where)
		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			yield(models.Capture{}, &models.StoreError{Op: "read", Category: category, Symbol: symbol, Err: err})
			return
		}
		defer rows.Close()

		n := 0
		for rows.Next() {
			var (
				at      time.Time
				payload string
			)
			if err := rows.Scan(&at, &payload); err != nil {
				yield(models.Capture{}, &models.StoreError{Op: "read", Category: category, Symbol: symbol, Err: err})
				return
			}
			n++
			if !yield(models.Capture{Category: category, Symbol: symbol, CapturedAt: at.UTC(), Payload: []byte(payload)}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Capture{}, &models.StoreError{Op: "read", Category: category, Symbol: symbol, Err: err})
			return
		}
		if s.l != nil {
			s.l.Debug("clickhouse read ok",
				applogger.String("category", category.String()),
				applogger.String("symbol", symbol.String()),
				applogger.Int("rows", n),
				applogger.Duration("duration_ms", time.Since(start)),
			)
		}
	}
}

func (s *CHCaptureStore) LastCapturedAt(ctx context.Context, category models.Category, symbol models.Symbol) (time.Time, error) {
	q := fmt.Sprintf(`SELECT count(), max(captured_at) FROM %s WHERE category = ? AND symbol = ?`, s.table)
	var (
		n  uint64
		at time.Time
	)
	if err := s.db.QueryRowContext(ctx, q, string(category), symbol.String()).Scan(&n, &at); err != nil {
		return time.Time{}, &models.StoreError{Op: "last_captured_at", Category: category, Symbol: symbol, Err: err}
	}
	if n == 0 {
		return time.Time{}, nil
	}
	return at.UTC(), nil
}

func (s *CHCaptureStore) Symbols(ctx context.Context, category models.Category) ([]models.Symbol, error) {
	q := fmt.Sprintf(`SELECT DISTINCT symbol FROM %s WHERE category = ? ORDER BY symbol`, s.table)
	rows, err := s.db.QueryContext(ctx, q, string(category))
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()
	return scanSymbols(rows, s.l)
}

func (s *CHCaptureStore) Health(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close is a no-op; the pool belongs to the clickhouse client.
func (s *CHCaptureStore) Close() error { return nil }

var _ domrepo.CaptureStore = (*CHCaptureStore)(nil)
