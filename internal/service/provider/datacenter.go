package provider

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/encoding/json"

	"FinCapture/internal/domain/models"
	pkghttp "FinCapture/pkg/http"
)

const (
	reportFinancial = "RPT_LICO_FN_CPD"
	reportDividend  = "RPT_SHAREBONUS_DET"

	// dcEmpty is the datacenter code for a query with no rows.
	dcEmpty = 9201
)

type datacenterResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  *struct {
		Pages int               `json:"pages"`
		Data  []json.RawMessage `json:"data"`
	} `json:"result"`
}

// queryReport fetches one page of a datacenter report filtered to sym,
// newest first.
func (c *Client) queryReport(ctx context.Context, report, sortColumn string, sym models.Symbol, page int) ([]json.RawMessage, error) {
	var resp datacenterResponse
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		URL:     c.cfg.DatacenterURL + "/api/data/v1/get",
		Headers: eastmoneyHeaders(),
		QueryParams: map[string][]string{
			"reportName":  {report},
			"columns":     {"ALL"},
			"filter":      {fmt.Sprintf(`(SECURITY_CODE="%s")`, sym.Code)},
			"pageNumber":  {strconv.Itoa(page)},
			"pageSize":    {strconv.Itoa(c.cfg.ReportPage)},
			"sortColumns": {sortColumn},
			"sortTypes":   {"-1"},
			"source":      {"WEB"},
			"client":      {"WEB"},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		if resp.Code == 0 || resp.Code == dcEmpty {
			return nil, nil
		}
		return nil, fmt.Errorf("%s %s: code=%d %s", report, sym, resp.Code, resp.Message)
	}
	if page > resp.Result.Pages {
		return nil, nil
	}
	return resp.Result.Data, nil
}

type financialRow struct {
	ReportDate        string `json:"REPORTDATE"`
	DataType          string `json:"DATATYPE"`
	NoticeDate        string `json:"NOTICE_DATE"`
	TotalRevenue      num    `json:"TOTAL_OPERATE_INCOME"`
	OperatingRevenue  num    `json:"OPERATE_INCOME"`
	OperatingProfit   num    `json:"OPERATE_PROFIT"`
	NetProfit         num    `json:"NETPROFIT"`
	ParentNetProfit   num    `json:"PARENT_NETPROFIT"`
	BasicEPS          num    `json:"BASIC_EPS"`
	TotalAssets       num    `json:"TOTAL_ASSETS"`
	TotalLiabilities  num    `json:"TOTAL_LIABILITIES"`
	TotalEquity       num    `json:"TOTAL_EQUITY"`
	OperatingCashFlow num    `json:"NETCASH_OPERATE"`
	InvestingCashFlow num    `json:"NETCASH_INVEST"`
	FinancingCashFlow num    `json:"NETCASH_FINANCE"`
	ROE               num    `json:"WEIGHTAVG_ROE"`
}

func (c *Client) fetchFinancials(ctx context.Context, batch models.Batch, page int) ([]models.RawRecord, error) {
	var out []models.RawRecord
	for _, sym := range batch {
		rows, err := c.queryReport(ctx, reportFinancial, "REPORTDATE", sym, page)
		if err != nil {
			return nil, err
		}
		for _, raw := range rows {
			var r financialRow
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, fmt.Errorf("decode %s row: %w", reportFinancial, err)
			}
			if r.ReportDate == "" {
				continue
			}
			rec, err := record(sym, models.FinancialStatement{
				Symbol:            sym.String(),
				ReportDate:        r.ReportDate,
				ReportType:        r.DataType,
				NoticeDate:        r.NoticeDate,
				TotalRevenue:      r.TotalRevenue.Decimal,
				OperatingRevenue:  r.OperatingRevenue.Decimal,
				OperatingProfit:   r.OperatingProfit.Decimal,
				NetProfit:         r.NetProfit.Decimal,
				ParentNetProfit:   r.ParentNetProfit.Decimal,
				BasicEPS:          r.BasicEPS.Decimal,
				TotalAssets:       r.TotalAssets.Decimal,
				TotalLiabilities:  r.TotalLiabilities.Decimal,
				TotalEquity:       r.TotalEquity.Decimal,
				OperatingCashFlow: r.OperatingCashFlow.Decimal,
				InvestingCashFlow: r.InvestingCashFlow.Decimal,
				FinancingCashFlow: r.FinancingCashFlow.Decimal,
				ROE:               r.ROE.Decimal,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

type dividendRow struct {
	ReportDate     string `json:"REPORT_DATE"`
	NoticeDate     string `json:"PLAN_NOTICE_DATE"`
	RecordDate     string `json:"EQUITY_RECORD_DATE"`
	ExDividendDate string `json:"EX_DIVIDEND_DATE"`
	BonusRatio     num    `json:"BONUS_RATIO"`
	TransferRatio  num    `json:"IT_RATIO"`
	CashPer10      num    `json:"PRETAX_BONUS_RMB"`
	DividendYield  num    `json:"DIVIDENT_RATIO"`
	Progress       string `json:"ASSIGN_PROGRESS"`
	EPS            num    `json:"BASIC_EPS"`
}

// fetchDividends drops plans without an ex-dividend date; they have no
// observation yet.
func (c *Client) fetchDividends(ctx context.Context, batch models.Batch, page int) ([]models.RawRecord, error) {
	var out []models.RawRecord
	for _, sym := range batch {
		rows, err := c.queryReport(ctx, reportDividend, "EX_DIVIDEND_DATE", sym, page)
		if err != nil {
			return nil, err
		}
		for _, raw := range rows {
			var r dividendRow
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, fmt.Errorf("decode %s row: %w", reportDividend, err)
			}
			if r.ExDividendDate == "" {
				continue
			}
			rec, err := record(sym, models.DividendEvent{
				Symbol:           sym.String(),
				ExDividendDate:   r.ExDividendDate,
				RecordDate:       r.RecordDate,
				PlanNoticeDate:   r.NoticeDate,
				ReportDate:       r.ReportDate,
				BonusRatio:       r.BonusRatio.Decimal,
				TransferRatio:    r.TransferRatio.Decimal,
				CashPer10Shares:  r.CashPer10.Decimal,
				DividendYield:    r.DividendYield.Decimal,
				AssignProgress:   r.Progress,
				EarningsPerShare: r.EPS.Decimal,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}
