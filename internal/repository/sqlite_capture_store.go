package repository

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"FinCapture/internal/domain/models"
	domrepo "FinCapture/internal/domain/repository"
	applogger "FinCapture/pkg/logger"
)

// SQLiteCaptureStore is an append-only capture log in a local SQLite file.
type SQLiteCaptureStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewSQLiteCaptureStore opens (or creates) the database at path.
func NewSQLiteCaptureStore(path string, l *applogger.Logger) (*SQLiteCaptureStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteCaptureStore{db: db, l: l}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if l != nil {
		l.Info("sqlite capture store opened", applogger.String("path", path))
	}
	return s, nil
}

func (s *SQLiteCaptureStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS captures (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			category    TEXT    NOT NULL,
			symbol      TEXT    NOT NULL,
			captured_at INTEGER NOT NULL,
			payload     BLOB    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_captures_key ON captures(category, symbol, captured_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (s *SQLiteCaptureStore) Append(ctx context.Context, c models.Capture) error {
	return s.AppendBatch(ctx, []models.Capture{c})
}

// AppendBatch writes captures in one transaction; either all land or none.
func (s *SQLiteCaptureStore) AppendBatch(ctx context.Context, captures []models.Capture) error {
	if len(captures) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.storeErr("append", captures[0], err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO captures (category, symbol, captured_at, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return s.storeErr("append", captures[0], err)
	}
	defer stmt.Close()

	for _, c := range captures {
		if _, err := stmt.ExecContext(ctx, string(c.Category), c.Symbol.String(), c.CapturedAt.UnixNano(), []byte(c.Payload)); err != nil {
			_ = tx.Rollback()
			return s.storeErr("append", c, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.storeErr("append", captures[0], err)
	}
	return nil
}

// Read streams captures of one (category, symbol) in capture order. Rows are
// held open only while the caller iterates.
func (s *SQLiteCaptureStore) Read(ctx context.Context, category models.Category, symbol models.Symbol) iter.Seq2[models.Capture, error] {
	return s.ReadSince(ctx, category, symbol, time.Time{})
}

func (s *SQLiteCaptureStore) ReadSince(ctx context.Context, category models.Category, symbol models.Symbol, since time.Time) iter.Seq2[models.Capture, error] {
	return func(yield func(models.Capture, error) bool) {
		q := `SELECT captured_at, payload FROM captures WHERE category = ? AND symbol = ?`
		args := []any{string(category), symbol.String()}
		if !since.IsZero() {
			q += ` AND captured_at >= ?`
			args = append(args, since.UnixNano())
		}
		rows, err := s.db.QueryContext(ctx, q+` ORDER BY captured_at, id`, args...)
		if err != nil {
			yield(models.Capture{}, &models.StoreError{Op: "read", Category: category, Symbol: symbol, Err: err})
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				ns      int64
				payload []byte
			)
			if err := rows.Scan(&ns, &payload); err != nil {
				yield(models.Capture{}, &models.StoreError{Op: "read", Category: category, Symbol: symbol, Err: err})
				return
			}
			c := models.Capture{
				Category:   category,
				Symbol:     symbol,
				CapturedAt: time.Unix(0, ns).UTC(),
				Payload:    payload,
			}
			if !yield(c, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Capture{}, &models.StoreError{Op: "read", Category: category, Symbol: symbol, Err: err})
		}
	}
}

func (s *SQLiteCaptureStore) LastCapturedAt(ctx context.Context, category models.Category, symbol models.Symbol) (time.Time, error) {
	var ns sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(captured_at) FROM captures WHERE category = ? AND symbol = ?`,
		string(category), symbol.String()).Scan(&ns)
	if err != nil {
		return time.Time{}, &models.StoreError{Op: "last_captured_at", Category: category, Symbol: symbol, Err: err}
	}
	if !ns.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, ns.Int64).UTC(), nil
}

// Symbols lists distinct symbols with at least one capture in category.
func (s *SQLiteCaptureStore) Symbols(ctx context.Context, category models.Category) ([]models.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM captures WHERE category = ? ORDER BY symbol`, string(category))
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()
	return scanSymbols(rows, s.l)
}

func (s *SQLiteCaptureStore) Health(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteCaptureStore) Close() error { return s.db.Close() }

func (s *SQLiteCaptureStore) storeErr(op string, c models.Capture, err error) error {
	if s.l != nil {
		s.l.Error("sqlite capture store error",
			applogger.String("op", op),
			applogger.String("category", c.Category.String()),
			applogger.String("symbol", c.Symbol.String()),
			applogger.Error(err),
		)
	}
	return &models.StoreError{Op: op, Category: c.Category, Symbol: c.Symbol, Err: err}
}

func scanSymbols(rows *sql.Rows, l *applogger.Logger) ([]models.Symbol, error) {
	var out []models.Symbol
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		sym, err := models.ParseSymbol(raw)
		if err != nil {
			if l != nil {
				l.Warn("skipping unparseable stored symbol", applogger.String("symbol", raw))
			}
			continue
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var _ domrepo.CaptureStore = (*SQLiteCaptureStore)(nil)
