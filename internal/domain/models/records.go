package models

import "github.com/shopspring/decimal"

// Payload records produced by the provider parsers. Each category's payload
// carries the field its observation key is derived from.

// StockInfo is one listed security from a symbol-list fetch.
type StockInfo struct {
	Symbol string `json:"symbol"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"`
	Board  Board  `json:"board"`
}

// PriceLevel is one side of an order book level.
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
}

// RealtimeQuote is a level-1 quote with five bid/ask levels.
type RealtimeQuote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Timestamp string          `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	PrevClose decimal.Decimal `json:"prev_close"`
	Price     decimal.Decimal `json:"price"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Volume    int64           `json:"volume"`
	Turnover  decimal.Decimal `json:"turnover"`
	Bids      []PriceLevel    `json:"bids"`
	Asks      []PriceLevel    `json:"asks"`
}

// HistoricalBar is one OHLCV bar.
type HistoricalBar struct {
	Symbol        string          `json:"symbol"`
	Date          string          `json:"date"`
	Open          decimal.Decimal `json:"open"`
	Close         decimal.Decimal `json:"close"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Volume        int64           `json:"volume"`
	Turnover      decimal.Decimal `json:"turnover"`
	Amplitude     decimal.Decimal `json:"amplitude"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Change        decimal.Decimal `json:"change"`
	TurnoverRate  decimal.Decimal `json:"turnover_rate"`
	KLineType     KLineType       `json:"kline_type"`
	AdjustType    AdjustType      `json:"adjust_type"`
}

// FinancialStatement is one reporting period.
type FinancialStatement struct {
	Symbol            string          `json:"symbol"`
	ReportDate        string          `json:"report_date"`
	ReportType        string          `json:"report_type"`
	NoticeDate        string          `json:"notice_date,omitempty"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	OperatingRevenue  decimal.Decimal `json:"operating_revenue"`
	OperatingProfit   decimal.Decimal `json:"operating_profit"`
	NetProfit         decimal.Decimal `json:"net_profit"`
	ParentNetProfit   decimal.Decimal `json:"parent_net_profit"`
	BasicEPS          decimal.Decimal `json:"basic_eps"`
	TotalAssets       decimal.Decimal `json:"total_assets"`
	TotalLiabilities  decimal.Decimal `json:"total_liabilities"`
	TotalEquity       decimal.Decimal `json:"total_equity"`
	OperatingCashFlow decimal.Decimal `json:"operating_cash_flow"`
	InvestingCashFlow decimal.Decimal `json:"investing_cash_flow"`
	FinancingCashFlow decimal.Decimal `json:"financing_cash_flow"`
	ROE               decimal.Decimal `json:"roe"`
}

// QuoteSnapshot is a valuation-oriented quote.
type QuoteSnapshot struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Timestamp      string          `json:"timestamp"`
	Price          decimal.Decimal `json:"price"`
	ChangePercent  decimal.Decimal `json:"change_percent"`
	LimitUp        decimal.Decimal `json:"limit_up"`
	LimitDown      decimal.Decimal `json:"limit_down"`
	TurnoverRate   decimal.Decimal `json:"turnover_rate"`
	VolumeRatio    decimal.Decimal `json:"volume_ratio"`
	PE             decimal.Decimal `json:"pe"`
	PB             decimal.Decimal `json:"pb"`
	TotalMarketCap decimal.Decimal `json:"total_market_cap"`
	FloatMarketCap decimal.Decimal `json:"float_market_cap"`
}

// DividendEvent is one dividend or rights plan.
type DividendEvent struct {
	Symbol           string          `json:"symbol"`
	ExDividendDate   string          `json:"ex_dividend_date"`
	RecordDate       string          `json:"record_date,omitempty"`
	PlanNoticeDate   string          `json:"plan_notice_date,omitempty"`
	ReportDate       string          `json:"report_date,omitempty"`
	BonusRatio       decimal.Decimal `json:"bonus_ratio"`
	TransferRatio    decimal.Decimal `json:"transfer_ratio"`
	CashPer10Shares  decimal.Decimal `json:"cash_per_10_shares"`
	DividendYield    decimal.Decimal `json:"dividend_yield"`
	AssignProgress   string          `json:"assign_progress,omitempty"`
	EarningsPerShare decimal.Decimal `json:"eps"`
}
