package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"FinCapture/internal/domain/models"
	pkghttp "FinCapture/pkg/http"
	"FinCapture/pkg/logger"
	"FinCapture/pkg/util"
)

// boardFilter is the clist "fs" filter enumerating each board's A shares.
var boardFilter = map[models.Board]string{
	models.BoardSH: "m:1+t:2,m:1+t:23",
	models.BoardSZ: "m:0+t:6,m:0+t:80",
	models.BoardBJ: "m:0+t:81+s:2048",
}

func eastmoneyHeaders() map[string]string {
	return map[string]string{
		"Referer":    eastmoneyReferer,
		"User-Agent": userAgent,
	}
}

type clistResponse struct {
	RC   int `json:"rc"`
	Data *struct {
		Total int `json:"total"`
		Diff  []struct {
			Code   string `json:"f12"`
			Market int    `json:"f13"`
			Name   string `json:"f14"`
		} `json:"diff"`
	} `json:"data"`
}

// fetchSymbolList pages through the constituents of each board pseudo-symbol
// in the batch. Records are keyed by the board symbol.
func (c *Client) fetchSymbolList(ctx context.Context, batch models.Batch, page int) ([]models.RawRecord, error) {
	var out []models.RawRecord
	for _, boardSym := range batch {
		board := models.Board(boardSym.Code)
		fs, ok := boardFilter[board]
		if !ok {
			return nil, fmt.Errorf("unknown board %q", boardSym.Code)
		}

		var resp clistResponse
		err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
			URL:     c.cfg.QuoteURL + "/api/qt/clist/get",
			Headers: eastmoneyHeaders(),
			QueryParams: map[string][]string{
				"pn":     {strconv.Itoa(page)},
				"pz":     {strconv.Itoa(c.cfg.ListPageSize)},
				"po":     {"1"},
				"np":     {"1"},
				"fltt":   {"2"},
				"fid":    {"f12"},
				"fs":     {fs},
				"fields": {"f12,f13,f14"},
			},
		}, &resp)
		if err != nil {
			return nil, err
		}
		if resp.RC != 0 {
			return nil, fmt.Errorf("symbol list %s: rc=%d", board, resp.RC)
		}
		if resp.Data == nil {
			continue
		}

		for _, d := range resp.Data.Diff {
			sym, err := models.NewSymbol(d.Code, board.Market())
			if err != nil {
				c.log.Debug("listing skipped", logger.String("code", d.Code), logger.Error(err))
				continue
			}
			rec, err := record(boardSym, models.StockInfo{
				Symbol: sym.String(),
				Code:   sym.Code,
				Name:   d.Name,
				Market: sym.Market,
				Board:  board,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

type klineResponse struct {
	RC   int `json:"rc"`
	Data *struct {
		Code   string   `json:"code"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// barRange returns the YYYYMMDD bounds of a historical page. Page 1 ends
// today; each further page ends where the previous one began. With a start
// date, page 1 spans the whole history and there is no page 2.
func (c *Client) barRange(page int) (string, string, bool) {
	if !c.cfg.StartDate.IsZero() {
		if page > 1 {
			return "", "", false
		}
		return c.cfg.StartDate.Format("20060102"), c.now().In(util.MarketZone).Format("20060102"), true
	}
	end := c.now().AddDate(0, 0, -(page-1)*c.cfg.BarWindowDays)
	beg, fin := util.DateWindow(end, c.cfg.BarWindowDays)
	return beg, fin, true
}

func (c *Client) fetchBars(ctx context.Context, batch models.Batch, page int) ([]models.RawRecord, error) {
	beg, fin, ok := c.barRange(page)
	if !ok {
		return nil, nil
	}

	var out []models.RawRecord
	for _, sym := range batch {
		var resp klineResponse
		err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
			URL:     c.cfg.HistoryURL + "/api/qt/stock/kline/get",
			Headers: eastmoneyHeaders(),
			QueryParams: map[string][]string{
				"secid":   {secID(sym)},
				"klt":     {strconv.Itoa(int(c.cfg.KLineType))},
				"fqt":     {strconv.Itoa(int(c.cfg.AdjustType))},
				"beg":     {beg},
				"end":     {fin},
				"fields1": {"f1,f2,f3,f4,f5,f6"},
				"fields2": {"f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61"},
			},
		}, &resp)
		if err != nil {
			return nil, err
		}
		if resp.RC != 0 {
			return nil, fmt.Errorf("kline %s: rc=%d", sym, resp.RC)
		}
		if resp.Data == nil {
			continue
		}
		for _, line := range resp.Data.Klines {
			bar, err := c.parseKline(sym, line)
			if err != nil {
				c.log.Debug("kline skipped", logger.String("symbol", sym.String()), logger.Error(err))
				continue
			}
			rec, err := record(sym, bar)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// parseKline reads "date,open,close,high,low,volume,amount,amplitude,
// change%,change,turnover".
func (c *Client) parseKline(sym models.Symbol, line string) (models.HistoricalBar, error) {
	f := strings.Split(line, ",")
	if len(f) < 11 {
		return models.HistoricalBar{}, fmt.Errorf("kline has %d fields", len(f))
	}
	return models.HistoricalBar{
		Symbol:        sym.String(),
		Date:          f[0],
		Open:          parseDecimal(f[1]),
		Close:         parseDecimal(f[2]),
		High:          parseDecimal(f[3]),
		Low:           parseDecimal(f[4]),
		Volume:        parseInt(f[5]),
		Turnover:      parseDecimal(f[6]),
		Amplitude:     parseDecimal(f[7]),
		ChangePercent: parseDecimal(f[8]),
		Change:        parseDecimal(f[9]),
		TurnoverRate:  parseDecimal(f[10]),
		KLineType:     c.cfg.KLineType,
		AdjustType:    c.cfg.AdjustType,
	}, nil
}

type snapshotResponse struct {
	RC   int `json:"rc"`
	Data *struct {
		Diff []struct {
			Code           string `json:"f12"`
			Market         int    `json:"f13"`
			Name           string `json:"f14"`
			Price          num    `json:"f2"`
			ChangePercent  num    `json:"f3"`
			TurnoverRate   num    `json:"f8"`
			PE             num    `json:"f9"`
			VolumeRatio    num    `json:"f10"`
			TotalMarketCap num    `json:"f20"`
			FloatMarketCap num    `json:"f21"`
			PB             num    `json:"f23"`
			Timestamp      num    `json:"f124"`
			LimitUp        num    `json:"f350"`
			LimitDown      num    `json:"f351"`
		} `json:"diff"`
	} `json:"data"`
}

const snapshotFields = "f2,f3,f8,f9,f10,f12,f13,f14,f20,f21,f23,f124,f350,f351"

// fetchSnapshots requests valuation quotes for the batch in one call.
func (c *Client) fetchSnapshots(ctx context.Context, batch models.Batch) ([]models.RawRecord, error) {
	ids := make([]string, len(batch))
	byID := make(map[string]models.Symbol, len(batch))
	for i, s := range batch {
		ids[i] = secID(s)
		byID[ids[i]] = s
	}

	var resp snapshotResponse
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		URL:     c.cfg.QuoteURL + "/api/qt/ulist.np/get",
		Headers: eastmoneyHeaders(),
		QueryParams: map[string][]string{
			"secids": {strings.Join(ids, ",")},
			"fltt":   {"2"},
			"fields": {snapshotFields},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.RC != 0 {
		return nil, fmt.Errorf("snapshot: rc=%d", resp.RC)
	}
	if resp.Data == nil {
		return nil, nil
	}

	var out []models.RawRecord
	for _, d := range resp.Data.Diff {
		sym, ok := byID[strconv.Itoa(d.Market)+"."+d.Code]
		ts := d.Timestamp.IntPart()
		if !ok || ts <= 0 {
			continue
		}
		rec, err := record(sym, models.QuoteSnapshot{
			Symbol:         sym.String(),
			Name:           d.Name,
			Timestamp:      time.Unix(ts, 0).In(util.MarketZone).Format(util.DateTimeLayout),
			Price:          d.Price.Decimal,
			ChangePercent:  d.ChangePercent.Decimal,
			LimitUp:        d.LimitUp.Decimal,
			LimitDown:      d.LimitDown.Decimal,
			TurnoverRate:   d.TurnoverRate.Decimal,
			VolumeRatio:    d.VolumeRatio.Decimal,
			PE:             d.PE.Decimal,
			PB:             d.PB.Decimal,
			TotalMarketCap: d.TotalMarketCap.Decimal,
			FloatMarketCap: d.FloatMarketCap.Decimal,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
