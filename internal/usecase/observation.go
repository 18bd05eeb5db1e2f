package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/encoding/json"

	"FinCapture/internal/domain/models"
	"FinCapture/pkg/util"
)

var (
	errEmptyPayload = errors.New("empty payload")
	errMissingKey   = errors.New("observation key field missing")
)

// observationField names the payload field that identifies an observation.
var observationField = map[models.Category]string{
	models.CategorySymbolList:         "symbol",
	models.CategoryRealtimeQuote:      "timestamp",
	models.CategoryHistoricalBar:      "date",
	models.CategoryFinancialStatement: "report_date",
	models.CategoryQuoteSnapshot:      "timestamp",
	models.CategoryDividendEvent:      "ex_dividend_date",
}

// ObservationKey extracts the normalized, category-specific key of a capture.
func ObservationKey(c models.Capture) (string, error) {
	field, ok := observationField[c.Category]
	if !ok {
		return "", fmt.Errorf("unknown category %q", c.Category)
	}
	if len(c.Payload) == 0 {
		return "", errEmptyPayload
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(c.Payload, &fields); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	raw, ok := fields[field]
	if !ok {
		return "", fmt.Errorf("%w: %s", errMissingKey, field)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("field %s: %w", field, err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s", errMissingKey, field)
	}

	switch c.Category {
	case models.CategorySymbolList:
		sym, err := models.ParseSymbol(value)
		if err != nil {
			return "", err
		}
		return sym.String(), nil
	case models.CategoryFinancialStatement, models.CategoryDividendEvent:
		if key, ok := util.NormalizeDate(value); ok {
			return key, nil
		}
	default:
		if key, ok := util.NormalizeDateTime(value); ok {
			return key, nil
		}
	}
	return "", fmt.Errorf("field %s: unparseable date %q", field, value)
}
