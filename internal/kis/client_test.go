package kis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/briangreenhill/tradedesk/internal/domain"
)

type fakeBroker struct {
	t          *testing.T
	mux        *http.ServeMux
	tokenCalls atomic.Int32
	lastTrID   atomic.Value
}

func newFakeBroker(t *testing.T) *fakeBroker {
	fb := &fakeBroker{t: t, mux: http.NewServeMux()}
	fb.mux.HandleFunc("/oauth2/tokenP", func(w http.ResponseWriter, r *http.Request) {
		fb.tokenCalls.Add(1)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client_credentials", body["grant_type"])
		assert.Equal(t, "key", body["appkey"])
		assert.Equal(t, "secret", body["appsecret"])
		writeJSON(w, map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 86400})
	})
	return fb
}

// handle registers a broker endpoint that checks the common headers and replies with out.
func (fb *fakeBroker) handle(path string, out func(r *http.Request) any) {
	fb.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(fb.t, "Bearer tok", r.Header.Get("authorization"))
		assert.Equal(fb.t, "key", r.Header.Get("appkey"))
		assert.Equal(fb.t, "secret", r.Header.Get("appsecret"))
		assert.Equal(fb.t, "P", r.Header.Get("custtype"))
		fb.lastTrID.Store(r.Header.Get("tr_id"))
		writeJSON(w, out(r))
	})
}

func (fb *fakeBroker) trID() string {
	v, _ := fb.lastTrID.Load().(string)
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func ok(fields map[string]any) map[string]any {
	fields["rt_cd"] = "0"
	fields["msg_cd"] = "MCA00000"
	fields["msg1"] = "정상처리 되었습니다."
	return fields
}

func (fb *fakeBroker) client(opts ...Option) *Client {
	srv := httptest.NewServer(fb.mux)
	fb.t.Cleanup(srv.Close)
	base := []Option{
		WithAccount("12345678", "01"),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	}
	opts = append(append(base, opts...), WithBaseURL(srv.URL))
	c, err := New("key", "secret", opts...)
	require.NoError(fb.t, err)
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New("", "secret")
	assert.Error(t, err)
	_, err = New("key", "")
	assert.Error(t, err)
}

func TestTokenIsReused(t *testing.T) {
	fb := newFakeBroker(t)
	fb.handle("/uapi/domestic-stock/v1/quotations/inquire-index-price", func(*http.Request) any {
		return ok(map[string]any{"output": map[string]string{"bstp_nmix_prpr": "2600.12"}})
	})
	c := fb.client()

	_, err := c.Indices(context.Background())
	require.NoError(t, err)
	_, err = c.Indices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fb.tokenCalls.Load())
}

func TestTokenWithoutAccessToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"error_description": "rate limited"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New("key", "secret", WithBaseURL(srv.URL), WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	require.NoError(t, err)
	_, err = c.StockPrice(context.Background(), "005930")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTrIDByEnvironment(t *testing.T) {
	handler := func(*http.Request) any { return ok(map[string]any{"output1": []any{}, "output2": []any{}}) }

	t.Run("demo", func(t *testing.T) {
		fb := newFakeBroker(t)
		fb.handle("/uapi/domestic-stock/v1/trading/inquire-balance", handler)
		_, err := fb.client(WithEnv(EnvDemo)).Balance(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "VTTC8434R", fb.trID())
	})

	t.Run("real", func(t *testing.T) {
		fb := newFakeBroker(t)
		fb.handle("/uapi/domestic-stock/v1/trading/inquire-balance", handler)
		_, err := fb.client(WithEnv(EnvReal)).Balance(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "TTTC8434R", fb.trID())
	})

	t.Run("quotations unchanged in demo", func(t *testing.T) {
		fb := newFakeBroker(t)
		fb.handle("/uapi/domestic-stock/v1/quotations/inquire-daily-price", func(*http.Request) any {
			return ok(map[string]any{"output": []any{}})
		})
		_, err := fb.client(WithEnv(EnvDemo)).StockChart(context.Background(), "005930")
		require.NoError(t, err)
		assert.Equal(t, "FHKST01010400", fb.trID())
	})
}

func TestBrokerRejection(t *testing.T) {
	fb := newFakeBroker(t)
	fb.handle("/uapi/domestic-stock/v1/quotations/inquire-price", func(*http.Request) any {
		return map[string]any{"rt_cd": "1", "msg_cd": "EGW00201", "msg1": "초당 거래건수를 초과하였습니다."}
	})
	_, err := fb.client().StockPrice(context.Background(), "005930")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "EGW00201", apiErr.Code)
	assert.Contains(t, err.Error(), "EGW00201")
}

func TestHTTPErrorStatus(t *testing.T) {
	fb := newFakeBroker(t)
	fb.mux.HandleFunc("/uapi/domestic-stock/v1/quotations/volume-rank", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	})
	_, err := fb.client().TopStocks(context.Background(), "J")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "504")
}

func TestStockPrice(t *testing.T) {
	fb := newFakeBroker(t)
	fb.handle("/uapi/domestic-stock/v1/quotations/inquire-price", func(r *http.Request) any {
		assert.Equal(t, "J", r.URL.Query().Get("FID_COND_MRKT_DIV_CODE"))
		assert.Equal(t, "005930", r.URL.Query().Get("FID_INPUT_ISCD"))
		return ok(map[string]any{"output": map[string]string{
			"stck_prpr": "71500",
			"prdy_vrss": "-500",
			"prdy_ctrt": "-0.69",
			"stck_oprc": "72000",
			"stck_hgpr": "72300",
			"stck_lwpr": "71200",
			"acml_vol":  "12345678",
		}})
	})
	fb.handle("/uapi/domestic-stock/v1/quotations/search-stock-info", func(r *http.Request) any {
		assert.Equal(t, "005930", r.URL.Query().Get("PDNO"))
		return ok(map[string]any{"output": map[string]string{"prdt_abrv_name": "삼성전자"}})
	})

	q, err := fb.client().StockPrice(context.Background(), "005930")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, domain.Quote{
		Name: "삼성전자", Price: 71500, Change: -500, Rate: -0.69,
		Open: 72000, High: 72300, Low: 71200, Volume: 12345678,
	}, *q)
}

func TestStockPriceUnknownCode(t *testing.T) {
	fb := newFakeBroker(t)
	fb.handle("/uapi/domestic-stock/v1/quotations/inquire-price", func(*http.Request) any {
		return ok(map[string]any{"output": map[string]string{}})
	})
	q, err := fb.client().StockPrice(context.Background(), "999999")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestOrderBook(t *testing.T) {
	fb := newFakeBroker(t)
	fb.handle("/uapi/domestic-stock/v1/quotations/inquire-asking-price-exp-ccn", func(*http.Request) any {
		return ok(map[string]any{"output1": map[string]string{
			"askp1": "71600", "askp_rsqn1": "100",
			"askp2": "71700", "askp_rsqn2": "200",
			"bidp1": "71500", "bidp_rsqn1": "300",
			"askp3": "0",
		}})
	})
	ob, err := fb.client().OrderBook(context.Background(), "005930")
	require.NoError(t, err)
	assert.Equal(t, []domain.Level{{Price: 71600, Volume: 100}, {Price: 71700, Volume: 200}}, ob.Asks)
	assert.Equal(t, []domain.Level{{Price: 71500, Volume: 300}}, ob.Bids)
}

func TestStockChartOldestFirst(t *testing.T) {
	fb := newFakeBroker(t)
	fb.handle("/uapi/domestic-stock/v1/quotations/inquire-daily-price", func(r *http.Request) any {
		assert.Equal(t, "D", r.URL.Query().Get("FID_PERIOD_DIV_CODE"))
		return ok(map[string]any{"output": []map[string]string{
			{"stck_bsop_date": "20240305", "stck_clpr": "71500", "acml_vol": "10"},
			{"stck_bsop_date": "20240304", "stck_clpr": "70000", "acml_vol": "20"},
		}})
	})
	pts, err := fb.client().StockChart(context.Background(), "005930")
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, "20240304", pts[0].Date)
	assert.Equal(t, 71500.0, pts[1].Price)
}

func TestIndicesPartialFailure(t *testing.T) {
	fb := newFakeBroker(t)
	fb.handle("/uapi/domestic-stock/v1/quotations/inquire-index-price", func(r *http.Request) any {
		assert.Equal(t, "U", r.URL.Query().Get("FID_COND_MRKT_DIV_CODE"))
		if r.URL.Query().Get("FID_INPUT_ISCD") == "1001" {
			return map[string]any{"rt_cd": "1", "msg_cd": "E", "msg1": "fail"}
		}
		return ok(map[string]any{"output": map[string]string{
			"bstp_nmix_prpr": "2600.5", "bstp_nmix_prdy_vrss": "10.2", "bstp_nmix_prdy_ctrt": "0.39",
		}})
	})
	idx, err := fb.client().Indices(context.Background())
	require.NoError(t, err)
	require.Len(t, idx, 2)
	assert.Equal(t, "KOSPI", idx["kospi"].Name)
	assert.Equal(t, "KOSPI200", idx["kospi200"].Name)
	assert.Equal(t, 2600.5, idx["kospi"].Price)
	assert.NotContains(t, idx, "kosdaq")
}

func TestRankings(t *testing.T) {
	fb := newFakeBroker(t)
	var scope, class atomic.Value
	fb.handle("/uapi/domestic-stock/v1/quotations/volume-rank", func(r *http.Request) any {
		scope.Store(r.URL.Query().Get("FID_INPUT_ISCD"))
		class.Store(r.URL.Query().Get("FID_BLNG_CLS_CODE"))
		return ok(map[string]any{"output": []map[string]string{
			{"data_rank": "1", "hts_kor_isnm": "삼성전자", "mksc_shrn_iscd": "005930", "stck_prpr": "71500", "prdy_vrss": "-500", "prdy_ctrt": "-0.69", "acml_vol": "100", "acml_tr_pbmn": "7150000"},
			{"hts_kor_isnm": "SK하이닉스", "mksc_shrn_iscd": "000660", "stck_prpr": "150000"},
		}})
	})
	c := fb.client()

	top, err := c.TopStocks(context.Background(), "Q")
	require.NoError(t, err)
	assert.Equal(t, "1001", scope.Load())
	assert.Equal(t, "0", class.Load())
	require.Len(t, top, 2)
	assert.Equal(t, 2, top[1].Rank)
	assert.Equal(t, int64(100), top[0].Volume)
	assert.Equal(t, -500.0, top[0].ChangeAmount)
	assert.Equal(t, -0.69, top[0].ChangeRate)

	_, err = c.TransactionRankings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0000", scope.Load())
	assert.Equal(t, "3", class.Load())
}

func TestSearch(t *testing.T) {
	fb := newFakeBroker(t)
	fb.handle("/uapi/domestic-stock/v1/quotations/inquire-price", func(*http.Request) any {
		return ok(map[string]any{"output": map[string]string{"stck_prpr": "71500", "prdy_vrss": "500", "prdy_ctrt": "0.7"}})
	})
	fb.handle("/uapi/domestic-stock/v1/quotations/search-stock-info", func(*http.Request) any {
		return ok(map[string]any{"output": map[string]string{"prdt_abrv_name": "삼성전자"}})
	})
	fb.handle("/uapi/domestic-stock/v1/quotations/volume-rank", func(r *http.Request) any {
		if r.URL.Query().Get("FID_INPUT_ISCD") == "1001" {
			return ok(map[string]any{"output": []map[string]string{
				{"hts_kor_isnm": "Naver Webtoon", "mksc_shrn_iscd": "111111"},
			}})
		}
		return ok(map[string]any{"output": []map[string]string{
			{"hts_kor_isnm": "NAVER", "mksc_shrn_iscd": "035420"},
			{"hts_kor_isnm": "삼성전자", "mksc_shrn_iscd": "005930"},
		}})
	})
	c := fb.client()

	byCode, err := c.Search(context.Background(), "005930")
	require.NoError(t, err)
	require.Len(t, byCode, 1)
	assert.Equal(t, domain.Stock{Code: "005930", Name: "삼성전자", Price: 71500, ChangeAmount: 500, ChangeRate: 0.7}, byCode[0])

	byName, err := c.Search(context.Background(), "naver")
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, "035420", byName[0].Code)
	assert.Equal(t, "111111", byName[1].Code)

	none, err := c.Search(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBalance(t *testing.T) {
	fb := newFakeBroker(t)
	fb.handle("/uapi/domestic-stock/v1/trading/inquire-balance", func(r *http.Request) any {
		q := r.URL.Query()
		assert.Equal(t, "12345678", q.Get("CANO"))
		assert.Equal(t, "01", q.Get("ACNT_PRDT_CD"))
		assert.Equal(t, "02", q.Get("INQR_DVSN"))
		return ok(map[string]any{
			"output1": []map[string]string{
				{"pdno": "005930", "prdt_name": "삼성전자", "hldg_qty": "10", "pchs_avg_pric": "70000.0000", "prpr": "71500", "evlu_amt": "715000", "evlu_pfls_amt": "15000", "evlu_pfls_rt": "2.14"},
				{"pdno": "000660", "prdt_name": "SK하이닉스", "hldg_qty": "0"},
			},
			"output2": []map[string]string{
				{"dnca_tot_amt": "1000000", "prvs_rcdl_excc_amt": "985000", "tot_evlu_amt": "1715000", "evlu_pfls_smtl_amt": "15000", "pchs_amt_smtl_amt": "700000"},
			},
		})
	})
	bal, err := fb.client().Balance(context.Background())
	require.NoError(t, err)
	require.Len(t, bal.Holdings, 1)
	assert.Equal(t, int64(10), bal.Holdings[0].Quantity)
	assert.Equal(t, 70000.0, bal.Holdings[0].AvgPurchasePrice)
	assert.Equal(t, 985000.0, bal.Summary.OrderableCash)
	assert.Equal(t, 1715000.0, bal.Summary.TotalEvalAmount)
}

func TestBalanceWithoutAccount(t *testing.T) {
	c, err := New("key", "secret", WithAccount("", "01"))
	require.NoError(t, err)
	_, err = c.Balance(context.Background())
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestPlaceOrder(t *testing.T) {
	fb := newFakeBroker(t)
	var calls atomic.Int32
	fb.handle("/uapi/domestic-stock/v1/trading/order-cash", func(r *http.Request) any {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		b, _ := io.ReadAll(r.Body)
		var body map[string]string
		assert.NoError(t, json.Unmarshal(b, &body))
		assert.Equal(t, map[string]string{
			"CANO": "12345678", "ACNT_PRDT_CD": "01", "PDNO": "005930",
			"ORD_DVSN": "00", "ORD_QTY": "3", "ORD_UNPR": "71000",
		}, body)
		return ok(map[string]any{"output": map[string]string{
			"KRX_FWDG_ORD_ORGNO": "91252", "ODNO": "0000117057", "ORD_TMD": "121052",
		}})
	})

	res, err := fb.client(WithEnv(EnvDemo)).PlaceOrder(context.Background(), domain.Order{
		StockCode: "005930", Quantity: 3, Price: 71000, OrderType: domain.OrderBuy,
	})
	require.NoError(t, err)
	assert.Equal(t, "VTTC0802U", fb.trID())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, &domain.OrderResult{OrderNo: "0000117057", OrgNo: "91252", OrderTime: "121052", Message: "정상처리 되었습니다."}, res)
}

func TestPlaceOrderIsNotRetried(t *testing.T) {
	fb := newFakeBroker(t)
	var calls atomic.Int32
	fb.mux.HandleFunc("/uapi/domestic-stock/v1/trading/order-cash", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := fb.client(WithEnv(EnvReal)).PlaceOrder(context.Background(), domain.Order{
		StockCode: "005930", Quantity: 1, OrderType: domain.OrderSell, OrderDvsn: domain.DvsnMarket,
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPlaceOrderRejectsUnknownType(t *testing.T) {
	c, err := New("key", "secret", WithAccount("12345678", "01"))
	require.NoError(t, err)
	_, err = c.PlaceOrder(context.Background(), domain.Order{StockCode: "005930", Quantity: 1, OrderType: "hold"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestPlaceOrderRejectsFractionalPrice(t *testing.T) {
	fb := newFakeBroker(t)
	var posted atomic.Int32
	fb.handle("/uapi/domestic-stock/v1/trading/order-cash", func(*http.Request) any {
		posted.Add(1)
		return ok(map[string]any{})
	})

	_, err := fb.client().PlaceOrder(context.Background(), domain.Order{
		StockCode: "005930", Quantity: 1, Price: 70000.5, OrderType: domain.OrderBuy,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.Equal(t, int32(0), posted.Load())
}

func TestParseNumbers(t *testing.T) {
	assert.Equal(t, 0.0, num(""))
	assert.Equal(t, 0.0, num("  "))
	assert.Equal(t, 0.0, num("n/a"))
	assert.Equal(t, -0.69, num("-0.69"))
	assert.Equal(t, 1234567.0, num("1,234,567"))
	assert.Equal(t, int64(0), integer(""))
	assert.Equal(t, int64(42), integer("42"))
	assert.Equal(t, int64(70000), integer("70000.0000"))
}
