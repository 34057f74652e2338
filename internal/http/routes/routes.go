package routes

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/tradedesk/internal/domain"
	appmw "github.com/briangreenhill/tradedesk/internal/http/middleware"
)

// Trading is the facade the API handlers call. *trading.Service implements it.
type Trading interface {
	StockDetail(ctx context.Context, code string) (*domain.Stock, error)
	OrderBook(ctx context.Context, code string) *domain.OrderBook
	StockChart(ctx context.Context, code string) []domain.ChartPoint
	MarketIndices(ctx context.Context) map[string]domain.Index
	TopStocks(ctx context.Context, market string) []domain.RankedStock
	IndexChart(ctx context.Context, code string) []domain.ChartPoint
	TransactionRankings(ctx context.Context) []domain.RankedStock
	Search(ctx context.Context, query string) ([]domain.Stock, error)
	Balance(ctx context.Context) (*domain.Balance, error)
	PlaceOrder(ctx context.Context, code string, qty int64, price float64, orderType, orderDvsn string) (*domain.OrderResult, error)
}

// Enqueuer is the part of *asynq.Client used to journal orders.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	Router   *chi.Mux
	Trading  Trading
	Queue    Enqueuer // optional; nil disables the order journal
	WebDir   string
	Log      zerolog.Logger
	now      func() time.Time
	indexDoc string
}

type ServerOptions struct {
	Trading     Trading
	Queue       Enqueuer
	Metrics     http.Handler
	BasePath    string
	WebDir      string
	CORSOrigins []string // nil allows any origin
	Logger      zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)
	r.Use(appmw.CORS(opts.CORSOrigins))

	s := &Server{
		Router:  r,
		Trading: opts.Trading,
		Queue:   opts.Queue,
		WebDir:  opts.WebDir,
		Log:     opts.Logger,
		now:     time.Now,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	basePath := opts.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	r.Route(basePath, func(api chi.Router) {
		api.Get("/indices", s.handleIndices)
		api.Get("/top-stocks", s.handleTopStocks)
		api.Get("/index-chart/{code}", s.handleIndexChart)
		api.Get("/transaction-rankings", s.handleTransactionRankings)
		api.Get("/search", s.handleSearch)
		api.Get("/stock/{code}", s.handleStock)
		api.Get("/stock/{code}/hoga", s.handleOrderBook)
		api.Get("/stock/{code}/chart", s.handleStockChart)
		api.Get("/balance", s.handleBalance)
		api.Post("/order", s.handleOrder)
	})

	if s.WebDir != "" {
		s.indexDoc = filepath.Join(s.WebDir, "index.html")
		if _, err := os.Stat(s.indexDoc); err != nil {
			s.Log.Warn().Err(err).Str("web_dir", s.WebDir).Msg("frontend index.html not found")
		}
		static := http.StripPrefix("/static/", http.FileServer(http.Dir(filepath.Join(s.WebDir, "static"))))
		r.Handle("/static/*", static)
		r.Get("/", s.handleIndexDoc)
		r.Get("/stock/{code}", s.handleIndexDoc)
		r.Get("/portfolio", s.handleIndexDoc)
	}

	return s
}

// handleIndexDoc serves the single-page frontend for its client-side routes.
func (s *Server) handleIndexDoc(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.indexDoc)
}
