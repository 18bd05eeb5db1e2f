package provider

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"

	"FinCapture/internal/domain/models"
	pkghttp "FinCapture/pkg/http"
	"FinCapture/pkg/logger"
)

// sinaMinFields is the field count of a complete level-1 quote line.
const sinaMinFields = 32

func sinaCode(s models.Symbol) string {
	return strings.ToLower(s.Market) + s.Code
}

// fetchRealtime requests every batch member in one call. Symbols the
// provider answers with an empty quote (suspended, unknown) are skipped.
func (c *Client) fetchRealtime(ctx context.Context, batch models.Batch) ([]models.RawRecord, error) {
	bySina := make(map[string]models.Symbol, len(batch))
	codes := make([]string, 0, len(batch))
	for _, s := range batch {
		code := sinaCode(s)
		bySina[code] = s
		codes = append(codes, code)
	}

	var body []byte
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.cfg.SinaURL + "/list=" + strings.Join(codes, ","),
		Headers: map[string]string{
			"Referer":    sinaReferer,
			"User-Agent": userAgent,
		},
	}, &body)
	if err != nil {
		return nil, err
	}

	utf8, err := simplifiedchinese.GBK.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode gbk: %w", err)
	}

	var out []models.RawRecord
	sc := bufio.NewScanner(bytes.NewReader(utf8))
	for sc.Scan() {
		code, fields, ok := splitSinaLine(sc.Text())
		if !ok {
			continue
		}
		sym, known := bySina[code]
		if !known {
			continue
		}
		if len(fields) < sinaMinFields {
			c.log.Debug("short sina quote skipped",
				logger.String("symbol", sym.String()),
				logger.Int("fields", len(fields)),
			)
			continue
		}
		rec, err := record(sym, parseSinaQuote(sym, fields))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan sina response: %w", err)
	}
	return out, nil
}

// splitSinaLine parses `var hq_str_sh600000="f0,f1,...";`. An empty quote
// string reports ok=false.
func splitSinaLine(line string) (code string, fields []string, ok bool) {
	const prefix = "hq_str_"
	i := strings.Index(line, prefix)
	if i < 0 {
		return "", nil, false
	}
	rest := line[i+len(prefix):]
	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return "", nil, false
	}
	code = rest[:eq]
	val := strings.TrimSpace(rest[eq+1:])
	val = strings.TrimSuffix(val, ";")
	val = strings.Trim(val, `"`)
	if val == "" {
		return code, nil, false
	}
	return code, strings.Split(val, ","), true
}

func parseSinaQuote(sym models.Symbol, f []string) models.RealtimeQuote {
	q := models.RealtimeQuote{
		Symbol:    sym.String(),
		Name:      f[0],
		Open:      parseDecimal(f[1]),
		PrevClose: parseDecimal(f[2]),
		Price:     parseDecimal(f[3]),
		High:      parseDecimal(f[4]),
		Low:       parseDecimal(f[5]),
		Volume:    parseInt(f[8]),
		Turnover:  parseDecimal(f[9]),
		Timestamp: f[30] + " " + f[31],
		Bids:      make([]models.PriceLevel, 0, 5),
		Asks:      make([]models.PriceLevel, 0, 5),
	}
	// Levels are (volume, price) pairs: bids at 10..19, asks at 20..29.
	for i := range 5 {
		q.Bids = append(q.Bids, models.PriceLevel{Volume: parseInt(f[10+2*i]), Price: parseDecimal(f[11+2*i])})
		q.Asks = append(q.Asks, models.PriceLevel{Volume: parseInt(f[20+2*i]), Price: parseDecimal(f[21+2*i])})
	}
	return q
}
