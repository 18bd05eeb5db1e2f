package util

import (
	"strconv"
	"strings"
	"time"
)

// MarketZone is the exchange-local zone (UTC+8) used by provider timestamps.
var MarketZone = time.FixedZone("CST", 8*3600)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

var localLayouts = []string{
	DateTimeLayout,
	"2006-01-02 15:04",
	DateLayout,
	"2006/01/02 15:04:05",
	"2006/01/02",
	"20060102",
}

// ParseTime tries RFC3339, RFC3339Nano, provider layouts in MarketZone, and
// unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, MarketZone); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e11 {
			return time.UnixMilli(ts), true
		}
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// NormalizeDate renders any parseable timestamp as YYYY-MM-DD in MarketZone.
func NormalizeDate(s string) (string, bool) {
	t, ok := ParseTime(s)
	if !ok {
		return "", false
	}
	return t.In(MarketZone).Format(DateLayout), true
}

// NormalizeDateTime renders a timestamp as YYYY-MM-DD HH:MM:SS in MarketZone.
// Date-only inputs keep the short form so daily keys sort before intraday ones.
func NormalizeDateTime(s string) (string, bool) {
	t, ok := ParseTime(s)
	if !ok {
		return "", false
	}
	if isDateOnly(strings.TrimSpace(s)) {
		return t.In(MarketZone).Format(DateLayout), true
	}
	return t.In(MarketZone).Format(DateTimeLayout), true
}

func isDateOnly(s string) bool {
	switch len(s) {
	case len(DateLayout):
		return s[4] == '-' || s[4] == '/'
	case len("20060102"):
		return true
	}
	return false
}

// DateWindow returns [end-days, end] as YYYYMMDD strings in MarketZone.
func DateWindow(end time.Time, days int) (string, string) {
	end = end.In(MarketZone)
	from := end.AddDate(0, 0, -days)
	return from.Format("20060102"), end.Format("20060102")
}
