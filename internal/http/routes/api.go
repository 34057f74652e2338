package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/tradedesk/internal/domain"
	"github.com/briangreenhill/tradedesk/internal/jobs"
	"github.com/briangreenhill/tradedesk/internal/trading"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, errorBody{Detail: err.Error()})
}

// A nil result from a cached read means no data has ever been available; it
// is served as JSON null with 200.

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Trading.MarketIndices(r.Context()))
}

func (s *Server) handleTopStocks(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("market")
	writeJSON(w, r, http.StatusOK, s.Trading.TopStocks(r.Context(), market))
}

func (s *Server) handleIndexChart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Trading.IndexChart(r.Context(), chi.URLParam(r, "code")))
}

func (s *Server) handleTransactionRankings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Trading.TransactionRankings(r.Context()))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("query parameter q is required"))
		return
	}
	stocks, err := s.Trading.Search(r.Context(), q)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if stocks == nil {
		stocks = []domain.Stock{}
	}
	writeJSON(w, r, http.StatusOK, stocks)
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	stock, err := s.Trading.StockDetail(r.Context(), chi.URLParam(r, "code"))
	switch {
	case errors.Is(err, trading.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case err != nil:
		writeError(w, r, http.StatusBadRequest, err)
	default:
		writeJSON(w, r, http.StatusOK, stock)
	}
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Trading.OrderBook(r.Context(), chi.URLParam(r, "code")))
}

func (s *Server) handleStockChart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Trading.StockChart(r.Context(), chi.URLParam(r, "code")))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.Trading.Balance(r.Context())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, r, http.StatusOK, bal)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var o domain.Order
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&o); err != nil {
		writeError(w, r, http.StatusBadRequest, errors.New("invalid order body: "+err.Error()))
		return
	}
	if err := o.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if o.OrderDvsn == "" {
		o.OrderDvsn = domain.DvsnLimit
	}

	res, err := s.Trading.PlaceOrder(r.Context(), o.StockCode, o.Quantity, o.Price, o.OrderType, o.OrderDvsn)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	s.journal(r, o, res)
	writeJSON(w, r, http.StatusOK, res)
}

// journal enqueues the accepted order for the worker. Failures are logged and
// never change the order response.
func (s *Server) journal(r *http.Request, o domain.Order, res *domain.OrderResult) {
	if s.Queue == nil {
		return
	}
	log := hlog.FromRequest(r)
	task, err := jobs.NewOrderPlacedTask(jobs.NewOrderPlaced(o, res, s.now()))
	if err != nil {
		log.Error().Err(err).Msg("build journal task")
		return
	}
	// detached from the request so a client disconnect does not drop the entry
	info, err := s.Queue.EnqueueContext(context.WithoutCancel(r.Context()), task, asynq.Queue(jobs.QueueJournal))
	if err != nil {
		log.Error().Err(err).Str("code", o.StockCode).Msg("journal enqueue failed")
		return
	}
	log.Info().Str("task_id", info.ID).Str("queue", info.Queue).Msg("order journaled")
}
