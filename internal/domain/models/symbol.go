package models

import (
	"fmt"
	"strings"
)

// Market codes.
const (
	MarketSH = "SH"
	MarketSZ = "SZ"
	MarketBJ = "BJ"
)

// Security types.
const (
	TypeStock = "STOCK"
	TypeIndex = "INDEX"
	TypeFund  = "FUND"
)

// Symbol identifies a security as code.market[.type], e.g. 600000.SH.
// Two symbols are equal when code and market match.
type Symbol struct {
	Code   string `json:"code"`
	Market string `json:"market"`
	Type   string `json:"type,omitempty"`
}

// NewSymbol builds a stock symbol, deriving the market when empty. Codes are
// limited to letters, digits and underscores since they end up in request
// parameters and archive paths.
func NewSymbol(code, market string) (Symbol, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Symbol{}, fmt.Errorf("symbol code is empty")
	}
	if !validCode(code) {
		return Symbol{}, fmt.Errorf("invalid symbol code %q", code)
	}
	market = strings.ToUpper(strings.TrimSpace(market))
	switch market {
	case "":
		m, err := ExchangeForCode(code)
		if err != nil {
			return Symbol{}, err
		}
		market = m
	case MarketSH, MarketSZ, MarketBJ:
	default:
		return Symbol{}, fmt.Errorf("unknown market %q", market)
	}
	return Symbol{Code: code, Market: market, Type: TypeStock}, nil
}

func validCode(code string) bool {
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		default:
			return false
		}
	}
	return true
}

// ParseSymbol parses "600000.SH", "000300.SH.INDEX" or a bare "600000".
func ParseSymbol(s string) (Symbol, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	switch len(parts) {
	case 1:
		return NewSymbol(parts[0], "")
	case 2:
		return NewSymbol(parts[0], parts[1])
	case 3:
		sym, err := NewSymbol(parts[0], parts[1])
		if err != nil {
			return Symbol{}, err
		}
		switch typ := strings.ToUpper(parts[2]); typ {
		case TypeStock, TypeIndex, TypeFund:
			sym.Type = typ
		default:
			return Symbol{}, fmt.Errorf("unknown security type %q", parts[2])
		}
		return sym, nil
	default:
		return Symbol{}, fmt.Errorf("invalid symbol %q", s)
	}
}

// MustParseSymbol panics on invalid input; for tests and constants.
func MustParseSymbol(s string) Symbol {
	sym, err := ParseSymbol(s)
	if err != nil {
		panic(err)
	}
	return sym
}

// Key is the identity used for equality and deduplication.
func (s Symbol) Key() string { return s.Code + "." + s.Market }

func (s Symbol) String() string {
	if s.Type == "" || s.Type == TypeStock {
		return s.Key()
	}
	return s.Key() + "." + s.Type
}

// Equal compares code and market only.
func (s Symbol) Equal(o Symbol) bool { return s.Code == o.Code && s.Market == o.Market }

// IsZero reports an unset symbol.
func (s Symbol) IsZero() bool { return s.Code == "" }

// ExchangeForCode derives the listing market from an A-share code prefix.
func ExchangeForCode(code string) (string, error) {
	switch {
	case strings.HasPrefix(code, "920"), strings.HasPrefix(code, "8"), strings.HasPrefix(code, "4"):
		return MarketBJ, nil
	case strings.HasPrefix(code, "6"):
		return MarketSH, nil
	case strings.HasPrefix(code, "0"), strings.HasPrefix(code, "3"):
		return MarketSZ, nil
	default:
		return "", fmt.Errorf("cannot derive market for code %q", code)
	}
}

// Board is a market board whose constituents form the symbol universe.
type Board string

const (
	BoardSH Board = "sh_a"
	BoardSZ Board = "sz_a"
	BoardBJ Board = "bj_a"
)

// Market returns the market a board lists on.
func (b Board) Market() string {
	switch b {
	case BoardSH:
		return MarketSH
	case BoardSZ:
		return MarketSZ
	case BoardBJ:
		return MarketBJ
	}
	return ""
}

// BoardSymbol returns the pseudo-symbol used to plan symbol-list fetches.
func (b Board) BoardSymbol() Symbol {
	return Symbol{Code: string(b), Market: b.Market(), Type: TypeIndex}
}
