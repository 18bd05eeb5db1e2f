package repository

import (
	"context"

	"FinCapture/internal/domain/models"
)

// ArchiveStore holds one canonical archive per (category, symbol).
type ArchiveStore interface {
	// WriteArchive replaces the archive atomically; readers see either the
	// previous archive or the new one in full.
	WriteArchive(ctx context.Context, category models.Category, symbol models.Symbol, entries []models.ArchiveEntry) error
	ReadArchive(ctx context.Context, category models.Category, symbol models.Symbol) ([]models.ArchiveEntry, error)
	ListArchived(ctx context.Context, category models.Category) ([]models.Symbol, error)
}
