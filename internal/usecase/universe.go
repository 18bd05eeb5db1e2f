package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/encoding/json"
	"golang.org/x/sync/singleflight"

	"FinCapture/internal/domain/models"
	drepo "FinCapture/internal/domain/repository"
	"FinCapture/pkg/cache"
	"FinCapture/pkg/logger"
)

// StaticUniverse is a fixed, configured list of symbols.
type StaticUniverse struct {
	symbols []models.Symbol
}

// NewStaticUniverse parses configured symbol strings.
func NewStaticUniverse(symbols []string) (*StaticUniverse, error) {
	out := make([]models.Symbol, 0, len(symbols))
	for _, s := range symbols {
		sym, err := models.ParseSymbol(s)
		if err != nil {
			return nil, fmt.Errorf("universe symbol %q: %w", s, err)
		}
		out = append(out, sym)
	}
	return &StaticUniverse{symbols: out}, nil
}

func (u *StaticUniverse) ListSymbols(context.Context) ([]models.Symbol, error) {
	return append([]models.Symbol(nil), u.symbols...), nil
}

// BoardUniverse lists the pseudo-symbols of market boards; it drives the
// symbol-list category, whose fetches enumerate each board's constituents.
type BoardUniverse struct {
	boards []models.Board
}

func NewBoardUniverse(boards []models.Board) *BoardUniverse {
	return &BoardUniverse{boards: boards}
}

func (u *BoardUniverse) ListSymbols(context.Context) ([]models.Symbol, error) {
	out := make([]models.Symbol, 0, len(u.boards))
	for _, b := range u.boards {
		out = append(out, b.BoardSymbol())
	}
	return out, nil
}

// CaptureUniverse derives tradable symbols from stored symbol-list captures.
// Per board, only listings seen within listingWindow of that board's newest
// capture count, so delisted symbols drop out of the universe. Only that
// window is read from the store.
type CaptureUniverse struct {
	store         drepo.CaptureStore
	boards        []models.Board
	listingWindow time.Duration
}

func NewCaptureUniverse(store drepo.CaptureStore, boards []models.Board, listingWindow time.Duration) *CaptureUniverse {
	if listingWindow <= 0 {
		listingWindow = 48 * time.Hour
	}
	return &CaptureUniverse{store: store, boards: boards, listingWindow: listingWindow}
}

func (u *CaptureUniverse) ListSymbols(ctx context.Context) ([]models.Symbol, error) {
	var out []models.Symbol
	for _, b := range u.boards {
		newest, err := u.store.LastCapturedAt(ctx, models.CategorySymbolList, b.BoardSymbol())
		if err != nil {
			return nil, err
		}
		if newest.IsZero() {
			continue
		}

		seen := map[string]models.Symbol{}
		since := newest.Add(-u.listingWindow)
		for c, err := range u.store.ReadSince(ctx, models.CategorySymbolList, b.BoardSymbol(), since) {
			if err != nil {
				return nil, err
			}
			var info models.StockInfo
			if err := json.Unmarshal(c.Payload, &info); err != nil {
				continue
			}
			sym, err := models.ParseSymbol(info.Symbol)
			if err != nil {
				continue
			}
			seen[sym.Key()] = sym
		}
		for _, s := range seen {
			out = append(out, s)
		}
	}
	return out, nil
}

// UnionUniverse merges several providers; Plan removes duplicates.
type UnionUniverse []drepo.SymbolUniverse

func (u UnionUniverse) ListSymbols(ctx context.Context) ([]models.Symbol, error) {
	var out []models.Symbol
	for _, p := range u {
		syms, err := p.ListSymbols(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, syms...)
	}
	return out, nil
}

// CachedUniverse reuses a universe snapshot for up to staleness. Concurrent
// misses share one upstream call. A zero staleness always refreshes.
type CachedUniverse struct {
	name      string
	upstream  drepo.SymbolUniverse
	cache     cache.Service
	staleness time.Duration
	group     singleflight.Group
	log       *logger.Logger
}

func NewCachedUniverse(name string, upstream drepo.SymbolUniverse, c cache.Service, staleness time.Duration, log *logger.Logger) *CachedUniverse {
	return &CachedUniverse{name: name, upstream: upstream, cache: c, staleness: staleness, log: log}
}

func (u *CachedUniverse) key() string { return cache.GenerateKey("universe", u.name) }

func (u *CachedUniverse) ListSymbols(ctx context.Context) ([]models.Symbol, error) {
	if u.staleness <= 0 || u.cache == nil {
		return u.upstream.ListSymbols(ctx)
	}

	var cached []models.Symbol
	err := u.cache.Get(ctx, u.key(), &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		u.log.Warn("universe cache read failed", logger.String("universe", u.name), logger.Error(err))
	}

	v, err, _ := u.group.Do(u.name, func() (interface{}, error) {
		syms, err := u.upstream.ListSymbols(ctx)
		if err != nil {
			return nil, err
		}
		if err := u.cache.Set(ctx, u.key(), syms, u.staleness); err != nil {
			u.log.Warn("universe cache write failed", logger.String("universe", u.name), logger.Error(err))
		}
		return syms, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]models.Symbol(nil), v.([]models.Symbol)...), nil
}
