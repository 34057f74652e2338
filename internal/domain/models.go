// Package domain holds the payload shapes served to the frontend.
package domain

// Stock is the canonical per-stock quote record.
type Stock struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	ChangeAmount float64 `json:"change_amount"`
	ChangeRate   float64 `json:"change_rate"`
}

// Quote is a price snapshot as the broker reports it. Stock is derived from it.
type Quote struct {
	Name   string
	Price  float64
	Change float64
	Rate   float64
	Open   float64
	High   float64
	Low    float64
	Volume int64
}

// Level is one price level of an order book.
type Level struct {
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
}

// OrderBook lists asks (lowest first) and bids (highest first).
type OrderBook struct {
	Asks []Level `json:"asks"`
	Bids []Level `json:"bids"`
}

type ChartPoint struct {
	Date   string  `json:"date,omitempty"` // YYYYMMDD
	Time   string  `json:"time,omitempty"` // HHMMSS, intraday only
	Open   float64 `json:"open,omitempty"`
	High   float64 `json:"high,omitempty"`
	Low    float64 `json:"low,omitempty"`
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
}

type Index struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
	Rate   float64 `json:"rate"`
}

// RankedStock is one row of a volume or transaction-amount ranking.
type RankedStock struct {
	Rank         int     `json:"rank"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	ChangeAmount float64 `json:"change_amount"`
	ChangeRate   float64 `json:"change_rate"`
	Volume       int64   `json:"volume"`
	Amount       float64 `json:"amount"`
}

// Balance mirrors the broker's account summary; field names are kept as the broker sends them
// because the frontend reads them directly.
type Balance struct {
	Summary  BalanceSummary `json:"summary"`
	Holdings []Holding      `json:"holdings"`
}

type BalanceSummary struct {
	TotalEvalAmount  float64 `json:"tot_evlu_amt"`
	ProfitLossAmount float64 `json:"evlu_pfls_smtl_amt"`
	PurchaseAmount   float64 `json:"pchs_amt_smtl_amt"`
	DepositAmount    float64 `json:"dnca_tot_amt"`
	OrderableCash    float64 `json:"orderable_cash"`
}

type Holding struct {
	Code             string  `json:"pdno"`
	Name             string  `json:"prdt_name"`
	Quantity         int64   `json:"hldg_qty"`
	AvgPurchasePrice float64 `json:"pchs_avg_pric"`
	CurrentPrice     float64 `json:"prpr"`
	EvalAmount       float64 `json:"evlu_amt"`
	ProfitLossAmount float64 `json:"evlu_pfls_amt"`
	ProfitLossRate   float64 `json:"evlu_pfls_rt"`
}
