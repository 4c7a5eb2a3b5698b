package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"sol-signal-bot/internal/config"
	"sol-signal-bot/internal/swap"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// RealizedPnL is one reducing or closing fill's realized profit.
type RealizedPnL struct {
	Time     time.Time
	Trader   string
	Mint     string
	Side     string
	Quantity float64
	Price    float64
	PnL      float64
	Closed   bool
}

// Writer persists swap events and realized PnL rows asynchronously. Rows are
// dropped (and counted) when the queues back up; analytics must never stall
// the ingest path.
type Writer struct {
	db       *sql.DB
	log      *zap.Logger
	schema   string
	swaps    chan swap.Result
	pnls     chan RealizedPnL
	started  atomic.Bool
	dropSwap atomic.Uint64
	dropPnL  atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:     db,
		log:    log,
		schema: schema,
		swaps:  make(chan swap.Result, queueSize),
		pnls:   make(chan RealizedPnL, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueSwap(result swap.Result) {
	if w == nil {
		return
	}
	select {
	case w.swaps <- result:
		return
	default:
		if w.dropSwap.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale swap queue full")
		}
	}
}

func (w *Writer) EnqueuePnL(row RealizedPnL) {
	if w == nil {
		return
	}
	select {
	case w.pnls <- row:
		return
	default:
		if w.dropPnL.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale pnl queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case result := <-w.swaps:
			w.writeSwap(ctx, result)
		case row := <-w.pnls:
			w.writePnL(ctx, row)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		tx_id TEXT NOT NULL,
		trader TEXT NOT NULL,
		mint TEXT NOT NULL,
		pool TEXT NOT NULL,
		side TEXT NOT NULL,
		token_amount DOUBLE PRECISION NOT NULL,
		ref_amount DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		price_usd DOUBLE PRECISION NOT NULL,
		total_usd DOUBLE PRECISION NOT NULL,
		degenerate BOOLEAN NOT NULL
	)`, w.table("swap_events"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		trader TEXT NOT NULL,
		mint TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		pnl DOUBLE PRECISION NOT NULL,
		closed BOOLEAN NOT NULL
	)`, w.table("realized_pnl"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("swap_events"))); err != nil && w.log != nil {
		w.log.Warn("timescale swap_events hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("realized_pnl"))); err != nil && w.log != nil {
		w.log.Warn("timescale realized_pnl hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeSwap(ctx context.Context, result swap.Result) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, tx_id, trader, mint, pool, side, token_amount, ref_amount, price, price_usd, total_usd, degenerate
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, w.table("swap_events"))
	if _, err := w.db.ExecContext(ctx, query,
		time.Unix(result.Timestamp, 0).UTC(),
		result.TxID,
		result.Trader,
		result.Mint,
		result.Pool,
		string(result.Side),
		result.TokenAmount,
		result.RefAmount,
		result.Price,
		result.PriceUSD,
		result.TotalUSD,
		result.Degenerate,
	); err != nil && w.log != nil {
		w.log.Warn("timescale swap insert failed", zap.Error(err))
	}
}

func (w *Writer) writePnL(ctx context.Context, row RealizedPnL) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, trader, mint, side, quantity, price, pnl, closed
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, w.table("realized_pnl"))
	if _, err := w.db.ExecContext(ctx, query,
		row.Time,
		row.Trader,
		row.Mint,
		row.Side,
		row.Quantity,
		row.Price,
		row.PnL,
		row.Closed,
	); err != nil && w.log != nil {
		w.log.Warn("timescale pnl insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
