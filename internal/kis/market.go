package kis

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/briangreenhill/tradedesk/internal/domain"
)

const quotations = "/uapi/domestic-stock/v1/quotations"

// Transaction ids for read-only quotation calls.
const (
	trPrice          = "FHKST01010100"
	trAskingPrice    = "FHKST01010200"
	trDailyPrice     = "FHKST01010400"
	trIndexPrice     = "FHPUP02100000"
	trIndexTimePrice = "FHPUP02110200"
	trVolumeRank     = "FHPST01710000"
	trStockInfo      = "CTPF1002R"
)

// ranking classes for volume-rank (FID_BLNG_CLS_CODE)
const (
	rankByVolume = "0"
	rankByAmount = "3"
)

// marketIndices is the fixed set shown on the dashboard. Key is the field the
// frontend reads the index from.
var marketIndices = []struct{ Key, Code, Name string }{
	{"kospi", "0001", "KOSPI"},
	{"kosdaq", "1001", "KOSDAQ"},
	{"kospi200", "2001", "KOSPI200"},
}

func stockQuery(code string) url.Values {
	return url.Values{
		"FID_COND_MRKT_DIV_CODE": {"J"},
		"FID_INPUT_ISCD":         {code},
	}
}

// StockPrice returns the current quote for code, or nil when the broker has no
// price for it.
func (c *Client) StockPrice(ctx context.Context, code string) (*domain.Quote, error) {
	var pr priceResponse
	if err := c.get(ctx, quotations+"/inquire-price", trPrice, stockQuery(code), &pr); err != nil {
		return nil, err
	}
	if strings.TrimSpace(pr.Output.StckPrpr) == "" {
		return nil, nil
	}

	name, err := c.stockName(ctx, code)
	if err != nil {
		c.log.Warn().Err(err).Str("code", code).Msg("stock name lookup failed")
		name = code
	}
	return &domain.Quote{
		Name:   name,
		Price:  num(pr.Output.StckPrpr),
		Change: num(pr.Output.PrdyVrss),
		Rate:   num(pr.Output.PrdyCtrt),
		Open:   num(pr.Output.StckOprc),
		High:   num(pr.Output.StckHgpr),
		Low:    num(pr.Output.StckLwpr),
		Volume: integer(pr.Output.AcmlVol),
	}, nil
}

func (c *Client) stockName(ctx context.Context, code string) (string, error) {
	var si stockInfoResponse
	q := url.Values{"PRDT_TYPE_CD": {"300"}, "PDNO": {code}}
	if err := c.get(ctx, quotations+"/search-stock-info", trStockInfo, q, &si); err != nil {
		return "", err
	}
	if si.Output.PrdtAbrvName != "" {
		return si.Output.PrdtAbrvName, nil
	}
	if si.Output.PrdtName != "" {
		return si.Output.PrdtName, nil
	}
	return code, nil
}

// OrderBook returns up to ten levels per side. Levels with a zero price are skipped.
func (c *Client) OrderBook(ctx context.Context, code string) (*domain.OrderBook, error) {
	var ar askingPriceResponse
	if err := c.get(ctx, quotations+"/inquire-asking-price-exp-ccn", trAskingPrice, stockQuery(code), &ar); err != nil {
		return nil, err
	}
	if len(ar.Output1) == 0 {
		return nil, nil
	}

	ob := &domain.OrderBook{}
	for i := 1; i <= 10; i++ {
		if p := num(ar.Output1[fmt.Sprintf("askp%d", i)]); p > 0 {
			ob.Asks = append(ob.Asks, domain.Level{Price: p, Volume: integer(ar.Output1[fmt.Sprintf("askp_rsqn%d", i)])})
		}
		if p := num(ar.Output1[fmt.Sprintf("bidp%d", i)]); p > 0 {
			ob.Bids = append(ob.Bids, domain.Level{Price: p, Volume: integer(ar.Output1[fmt.Sprintf("bidp_rsqn%d", i)])})
		}
	}
	return ob, nil
}

// StockChart returns daily candles, oldest first.
func (c *Client) StockChart(ctx context.Context, code string) ([]domain.ChartPoint, error) {
	q := stockQuery(code)
	q.Set("FID_PERIOD_DIV_CODE", "D")
	q.Set("FID_ORG_ADJ_PRC", "1")

	var dr dailyPriceResponse
	if err := c.get(ctx, quotations+"/inquire-daily-price", trDailyPrice, q, &dr); err != nil {
		return nil, err
	}
	points := make([]domain.ChartPoint, 0, len(dr.Output))
	for i := len(dr.Output) - 1; i >= 0; i-- {
		o := dr.Output[i]
		if o.StckBsopDate == "" {
			continue
		}
		points = append(points, domain.ChartPoint{
			Date:   o.StckBsopDate,
			Open:   num(o.StckOprc),
			High:   num(o.StckHgpr),
			Low:    num(o.StckLwpr),
			Price:  num(o.StckClpr),
			Volume: integer(o.AcmlVol),
		})
	}
	return points, nil
}

// Indices returns KOSPI, KOSDAQ and KOSPI200 keyed kospi, kosdaq and kospi200.
// An index that fails is left out; the call only fails when every index does.
func (c *Client) Indices(ctx context.Context) (map[string]domain.Index, error) {
	var (
		out     = make(map[string]domain.Index, len(marketIndices))
		lastErr error
	)
	for _, m := range marketIndices {
		q := url.Values{"FID_COND_MRKT_DIV_CODE": {"U"}, "FID_INPUT_ISCD": {m.Code}}
		var ir indexPriceResponse
		if err := c.get(ctx, quotations+"/inquire-index-price", trIndexPrice, q, &ir); err != nil {
			c.log.Warn().Err(err).Str("index", m.Code).Msg("index price failed")
			lastErr = err
			continue
		}
		out[m.Key] = domain.Index{
			Code:   m.Code,
			Name:   m.Name,
			Price:  num(ir.Output.BstpNmixPrpr),
			Change: num(ir.Output.BstpNmixPrdyVrss),
			Rate:   num(ir.Output.BstpNmixPrdyCtrt),
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// IndexChart returns intraday points for an index, oldest first.
func (c *Client) IndexChart(ctx context.Context, code string) ([]domain.ChartPoint, error) {
	q := url.Values{
		"FID_COND_MRKT_DIV_CODE": {"U"},
		"FID_INPUT_ISCD":         {code},
		"FID_INPUT_HOUR_1":       {"60"},
	}
	var tr indexTimePriceResponse
	if err := c.get(ctx, quotations+"/inquire-index-timeprice", trIndexTimePrice, q, &tr); err != nil {
		return nil, err
	}
	points := make([]domain.ChartPoint, 0, len(tr.Output))
	for i := len(tr.Output) - 1; i >= 0; i-- {
		o := tr.Output[i]
		points = append(points, domain.ChartPoint{
			Time:   o.BsopHour,
			Price:  num(o.BstpNmixPrpr),
			Volume: integer(o.CntgVol),
		})
	}
	return points, nil
}

// TopStocks ranks a market by traded volume. "J" is KOSPI, "Q" is KOSDAQ and
// anything else covers both.
func (c *Client) TopStocks(ctx context.Context, market string) ([]domain.RankedStock, error) {
	return c.volumeRank(ctx, marketScope(market), rankByVolume)
}

// TransactionRankings ranks both markets by traded amount.
func (c *Client) TransactionRankings(ctx context.Context) ([]domain.RankedStock, error) {
	return c.volumeRank(ctx, "0000", rankByAmount)
}

func marketScope(market string) string {
	switch strings.ToUpper(market) {
	case "J":
		return "0001"
	case "Q":
		return "1001"
	}
	return "0000"
}

func (c *Client) volumeRank(ctx context.Context, scope, class string) ([]domain.RankedStock, error) {
	q := url.Values{
		"FID_COND_MRKT_DIV_CODE": {"J"},
		"FID_COND_SCR_DIV_CODE":  {"20171"},
		"FID_INPUT_ISCD":         {scope},
		"FID_DIV_CLS_CODE":       {"0"},
		"FID_BLNG_CLS_CODE":      {class},
		"FID_TRGT_CLS_CODE":      {"111111111"},
		"FID_TRGT_EXLS_CLS_CODE": {"0000000000"},
		"FID_INPUT_PRICE_1":      {""},
		"FID_INPUT_PRICE_2":      {""},
		"FID_VOL_CNT":            {""},
		"FID_INPUT_DATE_1":       {""},
	}
	var vr volumeRankResponse
	if err := c.get(ctx, quotations+"/volume-rank", trVolumeRank, q, &vr); err != nil {
		return nil, err
	}
	out := make([]domain.RankedStock, 0, len(vr.Output))
	for i, o := range vr.Output {
		rank := int(integer(o.DataRank))
		if rank == 0 {
			rank = i + 1
		}
		out = append(out, domain.RankedStock{
			Rank:         rank,
			Code:         o.MkscShrnIscd,
			Name:         o.HtsKorIsnm,
			Price:        num(o.StckPrpr),
			ChangeAmount: num(o.PrdyVrss),
			ChangeRate:   num(o.PrdyCtrt),
			Volume:       integer(o.AcmlVol),
			Amount:       num(o.AcmlTrPbmn),
		})
	}
	return out, nil
}

// Search resolves a six-character stock code directly. Anything else is
// matched case-insensitively against the names in today's KOSPI and KOSDAQ
// volume rankings.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Stock, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	if isStockCode(q) {
		quote, err := c.StockPrice(ctx, q)
		if err != nil {
			return nil, err
		}
		if quote == nil {
			return nil, nil
		}
		return []domain.Stock{{
			Code:         q,
			Name:         quote.Name,
			Price:        quote.Price,
			ChangeAmount: quote.Change,
			ChangeRate:   quote.Rate,
		}}, nil
	}

	needle := strings.ToLower(q)
	seen := make(map[string]bool)
	var out []domain.Stock
	for _, market := range []string{"J", "Q"} {
		ranked, err := c.TopStocks(ctx, market)
		if err != nil {
			return nil, err
		}
		for _, r := range ranked {
			if seen[r.Code] || !strings.Contains(strings.ToLower(r.Name), needle) {
				continue
			}
			seen[r.Code] = true
			out = append(out, domain.Stock{
				Code:         r.Code,
				Name:         r.Name,
				Price:        r.Price,
				ChangeAmount: r.ChangeAmount,
				ChangeRate:   r.ChangeRate,
			})
		}
	}
	return out, nil
}

func isStockCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	// names like "NAVERX" would pass the charset check
	return s[0] >= '0' && s[0] <= '9'
}
