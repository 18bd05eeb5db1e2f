package usecase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCapture/internal/domain/models"
)

func TestObservationKey(t *testing.T) {
	tests := []struct {
		name     string
		category models.Category
		payload  string
		want     string
		wantErr  bool
	}{
		{"daily bar", models.CategoryHistoricalBar, `{"date":"2024-01-02"}`, "2024-01-02", false},
		{"intraday bar", models.CategoryHistoricalBar, `{"date":"2024-01-02 10:30"}`, "2024-01-02 10:30:00", false},
		{"realtime", models.CategoryRealtimeQuote, `{"timestamp":"2024-01-02 15:00:03"}`, "2024-01-02 15:00:03", false},
		{"snapshot", models.CategoryQuoteSnapshot, `{"timestamp":"2024-01-02 09:31:00"}`, "2024-01-02 09:31:00", false},
		{"financial", models.CategoryFinancialStatement, `{"report_date":"2023-12-31 00:00:00"}`, "2023-12-31", false},
		{"dividend", models.CategoryDividendEvent, `{"ex_dividend_date":"2023-06-16"}`, "2023-06-16", false},
		{"symbol list", models.CategorySymbolList, `{"symbol":"600000.SH","name":"PF Bank"}`, "600000.SH", false},
		{"symbol list bare code", models.CategorySymbolList, `{"symbol":"000001"}`, "000001.SZ", false},
		{"missing field", models.CategoryHistoricalBar, `{"close":1}`, "", true},
		{"empty field", models.CategoryDividendEvent, `{"ex_dividend_date":""}`, "", true},
		{"not a date", models.CategoryHistoricalBar, `{"date":"yesterday"}`, "", true},
		{"not json", models.CategoryHistoricalBar, `{date`, "", true},
		{"numeric key", models.CategoryHistoricalBar, `{"date":20240102}`, "", true},
		{"empty payload", models.CategoryHistoricalBar, ``, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ObservationKey(models.Capture{Category: tt.category, Payload: json.RawMessage(tt.payload)})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
