package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	OrderBuy  = "buy"
	OrderSell = "sell"
)

// Price-condition codes accepted by the broker
const (
	DvsnLimit          = "00"
	DvsnMarket         = "01"
	DvsnPreOvertime    = "05"
	DvsnPostOvertime   = "06"
	DvsnOvertimeSingle = "07"
)

var ErrInvalidOrder = errors.New("invalid order")

// Order is a cash order request for a single stock.
type Order struct {
	StockCode string  `json:"stock_code"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	OrderType string  `json:"order_type"` // buy or sell
	OrderDvsn string  `json:"order_dvsn"`
}

// OrderResult is what the broker reports back for an accepted order.
type OrderResult struct {
	OrderNo   string `json:"order_no"`
	OrgNo     string `json:"org_no"`
	OrderTime string `json:"order_time"`
	Message   string `json:"message"`
}

// Validate checks the fields the broker would otherwise reject.
func (o Order) Validate() error {
	if strings.TrimSpace(o.StockCode) == "" {
		return fmt.Errorf("%w: stock_code required", ErrInvalidOrder)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, o.Quantity)
	}
	switch o.OrderType {
	case OrderBuy, OrderSell:
	default:
		return fmt.Errorf("%w: order_type must be buy or sell, got %q", ErrInvalidOrder, o.OrderType)
	}
	if o.Price < 0 {
		return fmt.Errorf("%w: negative price", ErrInvalidOrder)
	}
	// the broker takes whole won only
	if o.Price != math.Trunc(o.Price) {
		return fmt.Errorf("%w: price must be a whole number, got %v", ErrInvalidOrder, o.Price)
	}
	if (o.OrderDvsn == "" || o.OrderDvsn == DvsnLimit) && o.Price == 0 {
		return fmt.Errorf("%w: limit order needs a price", ErrInvalidOrder)
	}
	return nil
}
