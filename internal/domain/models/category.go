package models

import (
	"fmt"
	"time"
)

// Category is one of the independent data-collection domains.
type Category string

const (
	CategorySymbolList         Category = "symbol_list"
	CategoryRealtimeQuote      Category = "realtime_quote"
	CategoryHistoricalBar      Category = "historical_bar"
	CategoryFinancialStatement Category = "financial_statement"
	CategoryQuoteSnapshot      Category = "quote_snapshot"
	CategoryDividendEvent      Category = "dividend_event"
)

// AllCategories lists categories in a stable order.
var AllCategories = []Category{
	CategorySymbolList,
	CategoryRealtimeQuote,
	CategoryHistoricalBar,
	CategoryFinancialStatement,
	CategoryQuoteSnapshot,
	CategoryDividendEvent,
}

func (c Category) String() string { return string(c) }

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range AllCategories {
		if k == c {
			return true
		}
	}
	return false
}

// ParseCategory accepts both snake_case and kebab-case names.
func ParseCategory(s string) (Category, error) {
	b := []byte(s)
	for i := range b {
		if b[i] == '-' {
			b[i] = '_'
		}
	}
	c := Category(b)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// CategorySpec is the fixed polling configuration of a category.
type CategorySpec struct {
	Category               Category
	Enabled                bool
	PollInterval           time.Duration
	MaxSymbolsPerBatch     int
	PagesPerSymbolPerCycle int
}

// Validate returns a ConfigurationError for unusable parameters.
func (s CategorySpec) Validate() error {
	if s.MaxSymbolsPerBatch < 1 {
		return &ConfigurationError{Category: s.Category, Field: "max_symbols_per_batch", Reason: fmt.Sprintf("must be >= 1, got %d", s.MaxSymbolsPerBatch)}
	}
	if s.PagesPerSymbolPerCycle < 1 {
		return &ConfigurationError{Category: s.Category, Field: "pages_per_symbol_per_cycle", Reason: fmt.Sprintf("must be >= 1, got %d", s.PagesPerSymbolPerCycle)}
	}
	if s.PollInterval <= 0 {
		return &ConfigurationError{Category: s.Category, Field: "poll_interval_seconds", Reason: "must be positive"}
	}
	return nil
}

// DefaultSpecs returns the provider-derived defaults for every category.
func DefaultSpecs() map[Category]CategorySpec {
	return map[Category]CategorySpec{
		CategorySymbolList:         {Category: CategorySymbolList, Enabled: true, PollInterval: time.Hour, MaxSymbolsPerBatch: 1, PagesPerSymbolPerCycle: 1},
		CategoryRealtimeQuote:      {Category: CategoryRealtimeQuote, Enabled: true, PollInterval: time.Second, MaxSymbolsPerBatch: 100, PagesPerSymbolPerCycle: 1},
		CategoryHistoricalBar:      {Category: CategoryHistoricalBar, Enabled: true, PollInterval: 5 * time.Second, MaxSymbolsPerBatch: 1, PagesPerSymbolPerCycle: 1},
		CategoryFinancialStatement: {Category: CategoryFinancialStatement, Enabled: true, PollInterval: 5 * time.Second, MaxSymbolsPerBatch: 1, PagesPerSymbolPerCycle: 1},
		CategoryQuoteSnapshot:      {Category: CategoryQuoteSnapshot, Enabled: true, PollInterval: 5 * time.Second, MaxSymbolsPerBatch: 1, PagesPerSymbolPerCycle: 1},
		CategoryDividendEvent:      {Category: CategoryDividendEvent, Enabled: true, PollInterval: 5 * time.Second, MaxSymbolsPerBatch: 1, PagesPerSymbolPerCycle: 1},
	}
}

// KLineType selects the bar period for historical fetches.
type KLineType int

const (
	KLine5Min    KLineType = 5
	KLine15Min   KLineType = 15
	KLine30Min   KLineType = 30
	KLine60Min   KLineType = 60
	KLineDaily   KLineType = 101
	KLineWeekly  KLineType = 102
	KLineMonthly KLineType = 103
)

// Intraday reports whether bars carry a time of day.
func (k KLineType) Intraday() bool { return k < KLineDaily }

// AdjustType selects price adjustment for historical fetches.
type AdjustType int

const (
	AdjustNone     AdjustType = 0
	AdjustForward  AdjustType = 1
	AdjustBackward AdjustType = 2
)
