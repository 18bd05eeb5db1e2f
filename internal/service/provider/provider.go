// Package provider fetches market data pages from Sina and Eastmoney and
// renders them as typed payload records.
package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"

	"FinCapture/internal/domain/models"
	drepo "FinCapture/internal/domain/repository"
	pkghttp "FinCapture/pkg/http"
	"FinCapture/pkg/logger"
)

const (
	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	sinaReferer      = "https://finance.sina.com.cn/"
	eastmoneyReferer = "https://quote.eastmoney.com/"
)

// Config selects endpoints and fetch parameters.
type Config struct {
	SinaURL       string
	QuoteURL      string
	HistoryURL    string
	DatacenterURL string

	KLineType  models.KLineType
	AdjustType models.AdjustType
	// BarWindowDays is the span of one historical page; page N reaches N
	// windows back from today.
	BarWindowDays int
	// StartDate, when set, makes page 1 cover StartDate through today and
	// disables window paging.
	StartDate    time.Time
	ListPageSize int
	ReportPage   int
}

// DefaultConfig points at the public endpoints.
func DefaultConfig() Config {
	return Config{
		SinaURL:       "https://hq.sinajs.cn",
		QuoteURL:      "https://push2.eastmoney.com",
		HistoryURL:    "https://push2his.eastmoney.com",
		DatacenterURL: "https://datacenter-web.eastmoney.com",
		KLineType:     models.KLineDaily,
		AdjustType:    models.AdjustForward,
		BarWindowDays: 365,
		ListPageSize:  5000,
		ReportPage:    50,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the time source for historical date windows.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client implements the fetch capability for every category.
type Client struct {
	http *pkghttp.Client
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
}

// New builds a provider client over hc, which should carry the per-host
// limiter.
func New(hc *pkghttp.Client, cfg Config, log *logger.Logger, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.SinaURL == "" {
		cfg.SinaURL = def.SinaURL
	}
	if cfg.QuoteURL == "" {
		cfg.QuoteURL = def.QuoteURL
	}
	if cfg.HistoryURL == "" {
		cfg.HistoryURL = def.HistoryURL
	}
	if cfg.DatacenterURL == "" {
		cfg.DatacenterURL = def.DatacenterURL
	}
	if cfg.KLineType == 0 {
		cfg.KLineType = def.KLineType
	}
	if cfg.BarWindowDays <= 0 {
		cfg.BarWindowDays = def.BarWindowDays
	}
	if cfg.ListPageSize <= 0 {
		cfg.ListPageSize = def.ListPageSize
	}
	if cfg.ReportPage <= 0 {
		cfg.ReportPage = def.ReportPage
	}
	c := &Client{
		http: hc,
		cfg:  cfg,
		log:  log.With(logger.String("component", "provider")),
		now:  time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch returns one page of req.Category for the batch. An empty page yields
// no records and no error.
func (c *Client) Fetch(ctx context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
	if len(req.Batch) == 0 {
		return nil, nil
	}
	if req.Page < 1 {
		req.Page = 1
	}
	switch req.Category {
	case models.CategorySymbolList:
		return c.fetchSymbolList(ctx, req.Batch, req.Page)
	case models.CategoryRealtimeQuote:
		if req.Page > 1 {
			return nil, nil
		}
		return c.fetchRealtime(ctx, req.Batch)
	case models.CategoryHistoricalBar:
		return c.fetchBars(ctx, req.Batch, req.Page)
	case models.CategoryQuoteSnapshot:
		if req.Page > 1 {
			return nil, nil
		}
		return c.fetchSnapshots(ctx, req.Batch)
	case models.CategoryFinancialStatement:
		return c.fetchFinancials(ctx, req.Batch, req.Page)
	case models.CategoryDividendEvent:
		return c.fetchDividends(ctx, req.Batch, req.Page)
	default:
		return nil, fmt.Errorf("unsupported category %q", req.Category)
	}
}

func record(sym models.Symbol, v any) (models.RawRecord, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return models.RawRecord{}, fmt.Errorf("encode %s payload: %w", sym, err)
	}
	return models.RawRecord{Symbol: sym, Payload: b}, nil
}

// secID renders the Eastmoney security id: 1.<code> on Shanghai, 0.<code>
// elsewhere.
func secID(s models.Symbol) string {
	if s.Market == models.MarketSH {
		return "1." + s.Code
	}
	return "0." + s.Code
}

// num decodes provider numbers sent as JSON numbers, numeric strings, or
// placeholders such as "-" and "".
type num struct{ decimal.Decimal }

func (n *num) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	switch s {
	case "", "-", "null", "--":
		n.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("number %q: %w", s, err)
	}
	n.Decimal = d
	return nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseInt(s string) int64 {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	return parseDecimal(s).IntPart()
}

var _ drepo.Fetcher = (*Client)(nil)
