package models

// Requests for archive HTTP endpoints.

type ArchiveQuery struct {
	Category string `param:"category" validate:"required,oneof=symbol_list realtime_quote historical_bar financial_statement quote_snapshot dividend_event"`
	Symbol   string `param:"symbol" validate:"required"`
	From     string `query:"from"`
	To       string `query:"to"`
	Limit    int    `query:"limit" default:"1000" validate:"gte=1,lte=100000"`
}

type MergeRequest struct {
	Category string   `json:"category" validate:"required,oneof=symbol_list realtime_quote historical_bar financial_statement quote_snapshot dividend_event"`
	Symbols  []string `json:"symbols" validate:"omitempty,max=500,dive,required"`
	Async    bool     `json:"async"`
}

type MergeResponse struct {
	RunID     string       `json:"run_id"`
	Category  string       `json:"category"`
	Queued    bool         `json:"queued"`
	Results   []MergeStats `json:"results,omitempty"`
	Failures  int          `json:"failures"`
	ElapsedMs int64        `json:"elapsed_ms"`
}

type MergeStats struct {
	Symbol    string `json:"symbol"`
	Entries   int    `json:"entries"`
	Consumed  int    `json:"consumed"`
	Malformed int    `json:"malformed"`
	Error     string `json:"error,omitempty"`
}
