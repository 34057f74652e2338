// Package trading is the single entry point the HTTP layer uses for market data
// and account operations. Read-only market data goes through the read-through
// cache; account and order operations always go straight to the broker.
package trading

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/tradedesk/internal/cache"
	"github.com/briangreenhill/tradedesk/internal/domain"
)

// DefaultMarket is used when TopStocks is called without a market.
const DefaultMarket = "J"

var ErrNotFound = errors.New("not found")

// NotFoundError reports a stock code with no data, fresh or cached.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("stock %s not found", e.Code)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Upstream is the broker API. *kis.Client implements it.
type Upstream interface {
	StockPrice(ctx context.Context, code string) (*domain.Quote, error)
	OrderBook(ctx context.Context, code string) (*domain.OrderBook, error)
	StockChart(ctx context.Context, code string) ([]domain.ChartPoint, error)
	Indices(ctx context.Context) (map[string]domain.Index, error)
	TopStocks(ctx context.Context, market string) ([]domain.RankedStock, error)
	IndexChart(ctx context.Context, code string) ([]domain.ChartPoint, error)
	TransactionRankings(ctx context.Context) ([]domain.RankedStock, error)
	Search(ctx context.Context, query string) ([]domain.Stock, error)
	Balance(ctx context.Context) (*domain.Balance, error)
	PlaceOrder(ctx context.Context, o domain.Order) (*domain.OrderResult, error)
}

type Service struct {
	upstream Upstream
	cache    *cache.Cache
	log      zerolog.Logger
}

func NewService(upstream Upstream, c *cache.Cache, log zerolog.Logger) *Service {
	if c == nil {
		c = cache.New(cache.WithLogger(log))
	}
	return &Service{upstream: upstream, cache: c, log: log}
}

// StockDetail returns the canonical quote for code. It fails with a
// *NotFoundError when the broker has never returned data for code.
func (s *Service) StockDetail(ctx context.Context, code string) (*domain.Stock, error) {
	stock, ok := cache.Fetch(ctx, s.cache, cache.Key("stock_detail", code), func(ctx context.Context) (*domain.Stock, error) {
		q, err := s.upstream.StockPrice(ctx, code)
		if err != nil || q == nil {
			return nil, err
		}
		return &domain.Stock{
			Code:         code,
			Name:         q.Name,
			Price:        q.Price,
			ChangeAmount: q.Change,
			ChangeRate:   q.Rate,
		}, nil
	})
	if !ok {
		return nil, &NotFoundError{Code: code}
	}
	return stock, nil
}

// The cached reads below return nil when no data has ever been available.

func (s *Service) OrderBook(ctx context.Context, code string) *domain.OrderBook {
	ob, _ := cache.Fetch(ctx, s.cache, cache.Key("order_book", code), func(ctx context.Context) (*domain.OrderBook, error) {
		return s.upstream.OrderBook(ctx, code)
	})
	return ob
}

func (s *Service) StockChart(ctx context.Context, code string) []domain.ChartPoint {
	pts, _ := cache.Fetch(ctx, s.cache, cache.Key("stock_chart", code), func(ctx context.Context) ([]domain.ChartPoint, error) {
		return s.upstream.StockChart(ctx, code)
	})
	return pts
}

func (s *Service) MarketIndices(ctx context.Context) map[string]domain.Index {
	idx, _ := cache.Fetch(ctx, s.cache, cache.Key("market_indices"), s.upstream.Indices)
	return idx
}

func (s *Service) TopStocks(ctx context.Context, market string) []domain.RankedStock {
	if market == "" {
		market = DefaultMarket
	}
	top, _ := cache.Fetch(ctx, s.cache, cache.Key("top_stocks", market), func(ctx context.Context) ([]domain.RankedStock, error) {
		return s.upstream.TopStocks(ctx, market)
	})
	return top
}

func (s *Service) IndexChart(ctx context.Context, code string) []domain.ChartPoint {
	pts, _ := cache.Fetch(ctx, s.cache, cache.Key("index_chart", code), func(ctx context.Context) ([]domain.ChartPoint, error) {
		return s.upstream.IndexChart(ctx, code)
	})
	return pts
}

func (s *Service) TransactionRankings(ctx context.Context) []domain.RankedStock {
	r, _ := cache.Fetch(ctx, s.cache, cache.Key("transaction_rankings"), s.upstream.TransactionRankings)
	return r
}

// Search is never cached.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Stock, error) {
	return s.upstream.Search(ctx, query)
}

// Balance is never cached.
func (s *Service) Balance(ctx context.Context) (*domain.Balance, error) {
	return s.upstream.Balance(ctx)
}

// PlaceOrder forwards the order to the broker exactly once and returns its
// result and error unchanged. An empty orderDvsn means a limit order.
func (s *Service) PlaceOrder(ctx context.Context, code string, qty int64, price float64, orderType, orderDvsn string) (*domain.OrderResult, error) {
	if orderDvsn == "" {
		orderDvsn = domain.DvsnLimit
	}
	res, err := s.upstream.PlaceOrder(ctx, domain.Order{
		StockCode: code,
		Quantity:  qty,
		Price:     price,
		OrderType: orderType,
		OrderDvsn: orderDvsn,
	})
	if err != nil {
		s.log.Error().Err(err).Str("code", code).Str("type", orderType).Msg("order failed")
	}
	return res, err
}
