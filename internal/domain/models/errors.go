package models

import (
	"fmt"
	"strings"
	"time"
)

// ConfigurationError reports unusable category parameters. Fatal for that category only.
type ConfigurationError struct {
	Category Category
	Field    string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Category == "" {
		return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration [%s]: %s %s", e.Category, e.Field, e.Reason)
}

// FetchError is a provider or network failure for one batch.
type FetchError struct {
	Category Category
	Batch    Batch
	Page     int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s page %d [%s]: %v", e.Category, e.Page, strings.Join(e.Batch.Strings(), ","), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedCaptureError marks a stored capture with no usable observation key.
type MalformedCaptureError struct {
	Category   Category
	Symbol     Symbol
	CapturedAt time.Time
	Err        error
}

func (e *MalformedCaptureError) Error() string {
	return fmt.Sprintf("malformed capture %s/%s@%s: %v", e.Category, e.Symbol, e.CapturedAt.Format(time.RFC3339Nano), e.Err)
}

func (e *MalformedCaptureError) Unwrap() error { return e.Err }

// StoreError is a persistence failure writing or reading captures or archives.
type StoreError struct {
	Op       string
	Category Category
	Symbol   Symbol
	Err      error
}

func (e *StoreError) Error() string {
	if e.Symbol.IsZero() {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.Category, e.Err)
	}
	return fmt.Sprintf("store %s %s/%s: %v", e.Op, e.Category, e.Symbol, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
