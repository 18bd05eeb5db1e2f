package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/segmentio/encoding/json"

	"FinCapture/internal/domain/models"
	domrepo "FinCapture/internal/domain/repository"
)

const (
	archiveExt     = ".jsonl"
	maxArchiveLine = 16 << 20
)

// FileArchiveStore keeps one JSON-lines file per (category, symbol) under
// dir/<category>/. A write replaces the file with a rename, so readers see
// the previous archive or the new one, never a partial file.
type FileArchiveStore struct {
	dir string
}

func NewFileArchiveStore(dir string) (*FileArchiveStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &FileArchiveStore{dir: dir}, nil
}

func (s *FileArchiveStore) path(category models.Category, symbol models.Symbol) string {
	return filepath.Join(s.dir, string(category), symbol.String()+archiveExt)
}

func (s *FileArchiveStore) WriteArchive(ctx context.Context, category models.Category, symbol models.Symbol, entries []models.ArchiveEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := s.path(category, symbol)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return archiveErr(category, symbol, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return archiveErr(category, symbol, err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			cleanup()
			return archiveErr(category, symbol, err)
		}
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return archiveErr(category, symbol, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return archiveErr(category, symbol, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return archiveErr(category, symbol, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return archiveErr(category, symbol, err)
	}
	syncDir(dir)
	return nil
}

// ReadArchive returns the published archive; a symbol never merged has none.
func (s *FileArchiveStore) ReadArchive(ctx context.Context, category models.Category, symbol models.Symbol) ([]models.ArchiveEntry, error) {
	f, err := os.Open(s.path(category, symbol))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.StoreError{Op: "read_archive", Category: category, Symbol: symbol, Err: err}
	}
	defer f.Close()

	var out []models.ArchiveEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxArchiveLine)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e models.ArchiveEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, &models.StoreError{Op: "read_archive", Category: category, Symbol: symbol, Err: err}
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, &models.StoreError{Op: "read_archive", Category: category, Symbol: symbol, Err: err}
	}
	return out, nil
}

func (s *FileArchiveStore) ListArchived(_ context.Context, category models.Category) ([]models.Symbol, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, string(category)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	var out []models.Symbol
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, archiveExt) {
			continue
		}
		sym, err := models.ParseSymbol(strings.TrimSuffix(name, archiveExt))
		if err != nil {
			continue
		}
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func archiveErr(category models.Category, symbol models.Symbol, err error) error {
	return &models.StoreError{Op: "write_archive", Category: category, Symbol: symbol, Err: err}
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

var _ domrepo.ArchiveStore = (*FileArchiveStore)(nil)
