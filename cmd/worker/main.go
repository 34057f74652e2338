package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/tradedesk/internal/config"
	"github.com/briangreenhill/tradedesk/internal/jobs"
	"github.com/briangreenhill/tradedesk/internal/journal"
	"github.com/briangreenhill/tradedesk/internal/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "tradedesk-worker",
		Short: "Order journal worker",
		Long:  "Consume journal tasks from Redis and record accepted orders in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if !cfg.HasQueue() || !cfg.HasJournal() {
				return errors.New("worker needs REDIS_ADDR and DATABASE_URL")
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (overrides LOG_LEVEL)")
	return cmd
}

func run(cfg *config.Config) error {
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer pool.Close()

	store := journal.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			jobs.QueueJournal: 1,
		},
		Logger: asynqLogger{logger.With().Str("component", "asynq").Logger()},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TaskOrderPlaced, handleOrderPlaced(store, logger))

	logger.Info().Str("redis", cfg.RedisAddr).Msg("worker running")
	return srv.Run(mux)
}

type recorder interface {
	Record(ctx context.Context, p jobs.OrderPlacedPayload) (uuid.UUID, error)
}

func handleOrderPlaced(store recorder, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p jobs.OrderPlacedPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("bad journal payload, dropping")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		id, err := store.Record(ctx, p)
		if err != nil {
			logger.Warn().Err(err).Str("order_no", p.OrderNo).Msg("journal insert failed")
			return err
		}
		logger.Info().
			Str("id", id.String()).
			Str("code", p.StockCode).
			Str("order_no", p.OrderNo).
			Msg("order journaled")
		return nil
	}
}

// asynqLogger routes asynq's internal logs through zerolog.
type asynqLogger struct{ l zerolog.Logger }

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
