// Package journal records accepted orders in Postgres.
package journal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/briangreenhill/tradedesk/internal/jobs"
)

const schema = `
CREATE TABLE IF NOT EXISTS order_journal (
	id          UUID PRIMARY KEY,
	stock_code  TEXT NOT NULL,
	order_type  TEXT NOT NULL,
	order_dvsn  TEXT NOT NULL,
	quantity    BIGINT NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	order_no    TEXT,
	org_no      TEXT,
	order_time  TEXT,
	message     TEXT,
	placed_at   TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertOrder = `
INSERT INTO order_journal
	(id, stock_code, order_type, order_dvsn, quantity, price, order_no, org_no, order_time, message, placed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db    DB
	newID func() uuid.UUID
}

func NewStore(db DB) *Store {
	return &Store{db: db, newID: uuid.New}
}

// Migrate creates the journal table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create order_journal: %w", err)
	}
	return nil
}

// Record inserts one accepted order and returns its journal id.
func (s *Store) Record(ctx context.Context, p jobs.OrderPlacedPayload) (uuid.UUID, error) {
	id := s.newID()
	_, err := s.db.Exec(ctx, insertOrder,
		id, p.StockCode, p.OrderType, p.OrderDvsn, p.Quantity, p.Price,
		p.OrderNo, p.OrgNo, p.OrderTime, p.Message, p.PlacedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert order_journal: %w", err)
	}
	return id, nil
}
