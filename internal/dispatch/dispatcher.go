package dispatch

import (
	"context"
	"time"

	"sol-signal-bot/internal/alerts"
	"sol-signal-bot/internal/book"
	"sol-signal-bot/internal/config"
	"sol-signal-bot/internal/ingest"
	"sol-signal-bot/internal/metrics"
	"sol-signal-bot/internal/publish"
	"sol-signal-bot/internal/swap"
	"sol-signal-bot/internal/timescale"

	"go.uber.org/zap"
)

// Dispatcher routes decoded events through the analyzer into the book and
// forwards the outcome. All book mutation happens inside ProcessTrade's
// critical section; everything that can block (publish, alerts, analytics)
// runs afterward on the returned values.
type Dispatcher struct {
	analyzer *swap.Analyzer
	book     *book.Book
	pub      publish.Publisher
	alerts   *alerts.Telegram
	metrics  *metrics.Metrics
	writer   *timescale.Writer
	log      *zap.Logger

	wallets map[string]struct{}
	maxOpen int
	now     func() time.Time
}

func New(
	tracker config.TrackerConfig,
	analyzer *swap.Analyzer,
	b *book.Book,
	pub publish.Publisher,
	alertsClient *alerts.Telegram,
	m *metrics.Metrics,
	writer *timescale.Writer,
	log *zap.Logger,
) *Dispatcher {
	if pub == nil {
		pub = publish.Noop{}
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	wallets := make(map[string]struct{}, len(tracker.Wallets))
	for _, w := range tracker.Wallets {
		wallets[w] = struct{}{}
	}
	return &Dispatcher{
		analyzer: analyzer,
		book:     b,
		pub:      pub,
		alerts:   alertsClient,
		metrics:  m,
		writer:   writer,
		log:      log,
		wallets:  wallets,
		maxOpen:  tracker.MaxOpenPositions,
		now:      time.Now,
	}
}

// SetClock replaces the wall-clock source. Tests use this to replay
// deterministic (timestamp, price) sequences.
func (d *Dispatcher) SetClock(now func() time.Time) {
	if now != nil {
		d.now = now
	}
}

// SetUSDRate forwards a refreshed reference-to-USD rate to the analyzer.
func (d *Dispatcher) SetUSDRate(rate float64) {
	d.analyzer.SetUSDRate(rate)
}

func (d *Dispatcher) HandleEvent(ctx context.Context, env ingest.Envelope) {
	switch env.Kind {
	case ingest.KindTrade:
		d.handleTrade(ctx, env.Trade)
	case ingest.KindBalances:
		d.handleBalances(ctx, env.Balance)
	default:
		d.metrics.EventsUnrecognized.Inc()
		d.log.Debug("unrecognized event", zap.ByteString("raw", env.Raw))
	}
}

// handleTrade builds a swap result from a self-reporting trade event. The
// amounts come from the instruction's own event log, so no balance
// reconstruction is needed.
func (d *Dispatcher) handleTrade(ctx context.Context, event *ingest.TradeEvent) {
	side := swap.SideSell
	if event.IsBuy {
		side = swap.SideBuy
	}
	price := 0.0
	if event.TokenAmount != 0 {
		price = event.SolAmount / event.TokenAmount
	}
	rate := d.analyzer.USDRate()
	result := swap.Result{
		Side:        side,
		TokenAmount: event.TokenAmount,
		RefAmount:   event.SolAmount,
		Price:       price,
		PriceUSD:    price * rate,
		TotalUSD:    price * rate * event.TokenAmount,
		Degenerate:  price == 0,
		TxID:        event.Signature,
		Trader:      event.Trader,
		Mint:        event.Mint,
		Timestamp:   event.Timestamp,
	}
	d.handleSwap(ctx, result)
}

func (d *Dispatcher) handleBalances(ctx context.Context, event *ingest.BalanceEvent) {
	pre := swap.Summarize(event.Pre)
	post := swap.Summarize(event.Post)
	result, ok := d.analyzer.Analyze(pre, post, event.Signature, event.Pool, event.BlockTime)
	if !ok {
		d.log.Debug("swap analysis found no reference balance", zap.String("tx", event.Signature))
		return
	}
	d.handleSwap(ctx, result)
}

func (d *Dispatcher) handleSwap(ctx context.Context, result swap.Result) {
	d.metrics.SwapsAnalyzed.Inc()
	if result.Degenerate {
		d.metrics.SwapsDegenerate.Inc()
	}
	if err := d.pub.PublishSwap(ctx, result); err != nil {
		d.metrics.PublishFailed.Inc()
		d.log.Warn("swap publish failed", zap.Error(err))
	}
	d.writer.EnqueueSwap(result)

	if !d.tracked(result.Trader) {
		d.metrics.SwapsSkipped.Inc()
		return
	}
	if result.Side == swap.SideUnknown || result.Degenerate {
		// No direction or no usable price; nothing for the book to do.
		d.metrics.SwapsSkipped.Inc()
		return
	}

	side := book.SideSell
	if result.Side == swap.SideBuy {
		side = book.SideBuy
	}
	if side == book.SideBuy && d.maxOpen > 0 {
		if _, exists := d.book.Lookup(result.Trader, result.Mint); !exists && d.book.Len() >= d.maxOpen {
			d.metrics.SwapsSkipped.Inc()
			d.log.Debug("open position cap reached",
				zap.String("trader", result.Trader), zap.String("mint", result.Mint))
			return
		}
	}

	now := d.now()
	outcome, ok := d.book.ProcessTrade(result.Trader, result.Mint, side, result.PriceUSD, result.TokenAmount, now)
	if !ok {
		d.metrics.NoPositionSells.Inc()
		return
	}
	if outcome.Opened {
		d.metrics.PositionsOpened.Inc()
	}
	if outcome.Closed {
		d.metrics.PositionsClosed.Inc()
	}
	if outcome.Reduced || outcome.Closed {
		d.writer.EnqueuePnL(timescale.RealizedPnL{
			Time:     now,
			Trader:   result.Trader,
			Mint:     result.Mint,
			Side:     string(result.Side),
			Quantity: result.TokenAmount,
			Price:    result.PriceUSD,
			PnL:      outcome.Realized,
			Closed:   outcome.Closed,
		})
	}
	if outcome.Decision == book.DecisionExit {
		d.metrics.ExitSignals.Inc()
		event := publish.DecisionEvent{
			Trader:    result.Trader,
			Mint:      result.Mint,
			Decision:  string(outcome.Decision),
			Price:     result.PriceUSD,
			Quantity:  result.TokenAmount,
			Realized:  outcome.Realized,
			Closed:    outcome.Closed,
			Timestamp: result.Timestamp,
		}
		if err := d.pub.PublishDecision(ctx, event); err != nil {
			d.metrics.PublishFailed.Inc()
			d.log.Warn("decision publish failed", zap.Error(err))
		}
		if d.alerts != nil {
			msg := alerts.FormatExit(result.Trader, result.Mint, result.PriceUSD, outcome.Realized, outcome.Closed)
			if err := d.alerts.Send(ctx, msg); err != nil {
				d.log.Warn("alert send failed", zap.Error(err))
			}
		}
	}
}

func (d *Dispatcher) tracked(trader string) bool {
	if len(d.wallets) == 0 {
		return true
	}
	_, ok := d.wallets[trader]
	return ok
}
