// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/briangreenhill/tradedesk/internal/cache"
	"github.com/briangreenhill/tradedesk/internal/config"
	"github.com/briangreenhill/tradedesk/internal/http/routes"
	"github.com/briangreenhill/tradedesk/internal/kis"
	"github.com/briangreenhill/tradedesk/internal/logging"
	"github.com/briangreenhill/tradedesk/internal/metrics"
	"github.com/briangreenhill/tradedesk/internal/trading"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		port     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "tradedesk-api",
		Short: "Trading dashboard API",
		Long:  "Serve market data, account balance and cash orders from the KIS Open API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&port, "port", "8000", "HTTP listen port (overrides PORT)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (overrides LOG_LEVEL)")
	return cmd
}

func serve(cfg *config.Config) error {
	logger := logging.New(cfg.LogLevel)
	m := metrics.New()

	env := kis.EnvDemo
	if cfg.IsReal() {
		env = kis.EnvReal
	}
	client, err := kis.New(cfg.KIS.AppKey, cfg.KIS.AppSecret,
		kis.WithEnv(env),
		kis.WithAccount(cfg.KIS.Account, cfg.KIS.ProductCode),
		kis.WithHTTPClient(&http.Client{Timeout: cfg.KIS.Timeout}),
		kis.WithLimiter(rate.NewLimiter(rate.Limit(cfg.KIS.RatePerSec), 1)),
		kis.WithLogger(logger.With().Str("component", "kis").Logger()),
		kis.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("kis client: %w", err)
	}

	c := cache.New(
		cache.WithTTL(cfg.CacheTTL),
		cache.WithLogger(logger.With().Str("component", "cache").Logger()),
		cache.WithMetrics(m),
	)
	svc := trading.NewService(client, c, logger)

	opts := routes.ServerOptions{
		Trading:     svc,
		Metrics:     m.Handler(),
		BasePath:    cfg.BasePath,
		WebDir:      cfg.WebDir,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	}
	if cfg.HasQueue() {
		q := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if closeErr := q.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("close asynq client")
			}
		}()
		opts.Queue = q
	} else {
		logger.Info().Msg("REDIS_ADDR not set, order journal disabled")
	}

	s := routes.New(opts)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("kis_env", cfg.KIS.Env).
			Dur("cache_ttl", c.TTL()).
			Msg("starting api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	}
}
