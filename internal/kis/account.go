package kis

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/briangreenhill/tradedesk/internal/domain"
)

const trading = "/uapi/domestic-stock/v1/trading"

// Production ids; the demo server uses the V-prefixed twins.
const (
	trBalance   = "TTTC8434R"
	trOrderBuy  = "TTTC0802U"
	trOrderSell = "TTTC0801U"
)

// Balance returns the account summary and every position with a non-zero quantity.
func (c *Client) Balance(ctx context.Context) (*domain.Balance, error) {
	if c.account == "" {
		return nil, ErrNoAccount
	}
	q := url.Values{
		"CANO":                  {c.account},
		"ACNT_PRDT_CD":          {c.product},
		"AFHR_FLPR_YN":          {"N"},
		"OFL_YN":                {""},
		"INQR_DVSN":             {"02"},
		"UNPR_DVSN":             {"01"},
		"FUND_STTL_ICLD_YN":     {"N"},
		"FNCG_AMT_AUTO_RDPT_YN": {"N"},
		"PRCS_DVSN":             {"01"},
		"CTX_AREA_FK100":        {""},
		"CTX_AREA_NK100":        {""},
	}
	var br balanceResponse
	if err := c.get(ctx, trading+"/inquire-balance", trBalance, q, &br); err != nil {
		return nil, err
	}

	bal := &domain.Balance{Holdings: []domain.Holding{}}
	for _, h := range br.Output1 {
		qty := integer(h.HldgQty)
		if qty == 0 {
			continue
		}
		bal.Holdings = append(bal.Holdings, domain.Holding{
			Code:             h.Pdno,
			Name:             h.PrdtName,
			Quantity:         qty,
			AvgPurchasePrice: num(h.PchsAvgPric),
			CurrentPrice:     num(h.Prpr),
			EvalAmount:       num(h.EvluAmt),
			ProfitLossAmount: num(h.EvluPflsAmt),
			ProfitLossRate:   num(h.EvluPflsRt),
		})
	}
	if len(br.Output2) > 0 {
		s := br.Output2[0]
		bal.Summary = domain.BalanceSummary{
			TotalEvalAmount:  num(s.TotEvluAmt),
			ProfitLossAmount: num(s.EvluPflsSmtlAmt),
			PurchaseAmount:   num(s.PchsAmtSmtlAmt),
			DepositAmount:    num(s.DncaTotAmt),
			OrderableCash:    num(s.PrvsRcdlExccAmt),
		}
	}
	return bal, nil
}

// PlaceOrder submits a cash order. It is sent exactly once; a failed order is
// never retried here.
func (c *Client) PlaceOrder(ctx context.Context, o domain.Order) (*domain.OrderResult, error) {
	if c.account == "" {
		return nil, ErrNoAccount
	}
	var trID string
	switch o.OrderType {
	case domain.OrderBuy:
		trID = trOrderBuy
	case domain.OrderSell:
		trID = trOrderSell
	default:
		return nil, fmt.Errorf("%w: order_type %q", domain.ErrInvalidOrder, o.OrderType)
	}
	if o.Price != math.Trunc(o.Price) {
		return nil, fmt.Errorf("%w: price %v is not whole won", domain.ErrInvalidOrder, o.Price)
	}
	dvsn := o.OrderDvsn
	if dvsn == "" {
		dvsn = domain.DvsnLimit
	}

	req := orderCashRequest{
		CANO:       c.account,
		AcntPrdtCd: c.product,
		Pdno:       o.StockCode,
		OrdDvsn:    dvsn,
		OrdQty:     strconv.FormatInt(o.Quantity, 10),
		OrdUnpr:    strconv.FormatInt(int64(o.Price), 10),
	}
	var resp orderCashResponse
	if err := c.post(ctx, trading+"/order-cash", trID, req, &resp); err != nil {
		return nil, err
	}
	c.log.Info().
		Str("code", o.StockCode).
		Str("type", o.OrderType).
		Int64("qty", o.Quantity).
		Str("order_no", resp.Output.Odno).
		Msg("order placed")

	return &domain.OrderResult{
		OrderNo:   resp.Output.Odno,
		OrgNo:     resp.Output.KrxFwdgOrdOrgno,
		OrderTime: resp.Output.OrdTmd,
		Message:   resp.Msg1,
	}, nil
}
