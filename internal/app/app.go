package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"sol-signal-bot/internal/alerts"
	"sol-signal-bot/internal/book"
	"sol-signal-bot/internal/config"
	"sol-signal-bot/internal/dispatch"
	"sol-signal-bot/internal/ingest"
	"sol-signal-bot/internal/metrics"
	"sol-signal-bot/internal/publish"
	redispub "sol-signal-bot/internal/publish/redis"
	"sol-signal-bot/internal/state"
	"sol-signal-bot/internal/state/sqlite"
	"sol-signal-bot/internal/swap"
	"sol-signal-bot/internal/timescale"

	"go.uber.org/zap"
)

// App owns the order book and every collaborator around it. The book is an
// explicit instance constructed here, never package-level state.
type App struct {
	cfg        *config.Config
	log        *zap.Logger
	store      *sqlite.Store
	book       *book.Book
	analyzer   *swap.Analyzer
	publisher  publish.Publisher
	writer     *timescale.Writer
	consumer   *ingest.Consumer
	dispatcher *dispatch.Dispatcher
	prom       *metrics.Prometheus

	lastSlot atomic.Uint64
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	orderBook := book.New(book.ParamsFromConfig(cfg.Engine), log)
	analyzer := swap.NewAnalyzer(cfg.Analyzer.ReferenceMint, cfg.Analyzer.PoolAuthority, cfg.Analyzer.USDRate)

	var publisher publish.Publisher = publish.Noop{}
	if cfg.Redis.Enabled {
		bus, err := redispub.NewBus(ctx, cfg.Redis)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		publisher = bus
	}

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.ListenAddr != "" {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		log.Warn("timescale writer disabled", zap.Error(err))
		writer = nil
	}

	alertsClient := alerts.NewTelegram(cfg.Telegram, log)
	consumer := ingest.NewConsumer(cfg.Ingest.URL, cfg.Ingest.ReconnectDelay, cfg.Ingest.PingInterval, log)
	for _, sub := range cfg.Ingest.Subscriptions {
		consumer.Subscribe([]byte(sub))
	}
	dispatcher := dispatch.New(cfg.Tracker, analyzer, orderBook, publisher, alertsClient, m, writer, log)

	return &App{
		cfg:        cfg,
		log:        log,
		store:      store,
		book:       orderBook,
		analyzer:   analyzer,
		publisher:  publisher,
		writer:     writer,
		consumer:   consumer,
		dispatcher: dispatcher,
		prom:       prom,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.publisher.Close()
	defer a.writer.Close()

	if snapshot, ok, err := state.LoadBookSnapshot(ctx, a.store); err != nil {
		a.log.Warn("book snapshot load failed", zap.Error(err))
	} else if ok {
		restored := a.book.Restore(snapshot.Positions)
		a.log.Info("book snapshot restored", zap.Int("positions", restored))
	}
	if slot, ok, err := state.LoadLastSlot(ctx, a.store); err != nil {
		a.log.Warn("ingest cursor load failed", zap.Error(err))
	} else if ok {
		a.lastSlot.Store(slot)
		a.log.Info("ingest cursor restored", zap.Uint64("slot", slot))
	}

	a.writer.Start(ctx)
	a.serveMetrics(ctx)

	err := a.consumer.Run(ctx, func(env ingest.Envelope) {
		a.trackSlot(env)
		a.dispatcher.HandleEvent(ctx, env)
	})

	a.persist()
	return err
}

func (a *App) trackSlot(env ingest.Envelope) {
	var slot uint64
	switch {
	case env.Trade != nil:
		slot = env.Trade.Slot
	case env.Balance != nil:
		slot = env.Balance.Slot
	}
	if slot > a.lastSlot.Load() {
		a.lastSlot.Store(slot)
	}
}

// persist writes the book snapshot and ingest cursor on the way out, with a
// fresh context since the run context is already cancelled.
func (a *App) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snapshot := state.BookSnapshot{
		Positions:   a.book.Positions(),
		UpdatedAtMS: time.Now().UnixMilli(),
	}
	if err := state.SaveBookSnapshot(ctx, a.store, snapshot); err != nil {
		a.log.Warn("book snapshot save failed", zap.Error(err))
	}
	if slot := a.lastSlot.Load(); slot > 0 {
		if err := state.SaveLastSlot(ctx, a.store, slot); err != nil {
			a.log.Warn("ingest cursor save failed", zap.Error(err))
		}
	}
}

func (a *App) serveMetrics(ctx context.Context) {
	if a.prom == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.prom.Handler())
	server := &http.Server{Addr: a.cfg.Metrics.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server failed", zap.Error(err))
		}
	}()
}
