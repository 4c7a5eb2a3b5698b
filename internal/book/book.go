package book

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type Key struct {
	Trader string `json:"trader"`
	Mint   string `json:"mint"`
}

// Position is the economic state of one (trader, mint) holding. The decision
// state machine lives alongside it in Trailing.
type Position struct {
	Trader       string    `json:"trader"`
	Mint         string    `json:"mint"`
	Side         Side      `json:"side"`
	OpenPrice    float64   `json:"open_price"`
	Quantity     float64   `json:"quantity"`
	CurrentPrice float64   `json:"current_price"`
	Trailing     *Trailing `json:"trailing"`
}

// PnL is the realized profit for closing quantity at price.
func (p *Position) PnL(price, quantity float64) float64 {
	if p.Side == SideBuy {
		return (price - p.OpenPrice) * quantity
	}
	return (p.OpenPrice - price) * quantity
}

// TradeResult reports what a processed fill did to the book.
type TradeResult struct {
	Decision Decision
	Opened   bool
	Reduced  bool
	Closed   bool
	Realized float64
}

// Book holds open positions keyed by (trader, mint) with a secondary index
// from mint to keys. One mutex guards the whole structure; trade events are a
// sequential stream and nothing blocks inside the critical section, so
// coarse locking is enough. Publishing happens after the lock is released,
// from the returned TradeResult.
type Book struct {
	mu        sync.Mutex
	params    Params
	positions map[Key]*Position
	mintKeys  map[string]map[Key]struct{}
	log       *zap.Logger
}

func New(params Params, log *zap.Logger) *Book {
	if log == nil {
		log = zap.NewNop()
	}
	return &Book{
		params:    params,
		positions: make(map[Key]*Position),
		mintKeys:  make(map[string]map[Key]struct{}),
		log:       log,
	}
}

// ProcessTrade advances the book with one fill. The price update always runs
// through the trailing machine first, regardless of the fill's side: the
// decision reflects market movement, not this particular fill.
//
// Returns ok=false when a Sell arrives with no position to reduce; the book
// is left untouched in that case.
func (b *Book) ProcessTrade(trader, mint string, side Side, price, quantity float64, now time.Time) (TradeResult, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := Key{Trader: trader, Mint: mint}
	pos, exists := b.positions[key]
	if !exists {
		if side != SideBuy {
			// Nothing to reduce; opening shorts is intentionally not supported.
			return TradeResult{}, false
		}
		b.positions[key] = &Position{
			Trader:       trader,
			Mint:         mint,
			Side:         side,
			OpenPrice:    price,
			Quantity:     quantity,
			CurrentPrice: price,
			Trailing:     NewTrailing(trader, mint, price, now, b.params),
		}
		keys, ok := b.mintKeys[mint]
		if !ok {
			keys = make(map[Key]struct{})
			b.mintKeys[mint] = keys
		}
		keys[key] = struct{}{}
		return TradeResult{Decision: DecisionHold, Opened: true}, true
	}

	result := TradeResult{Decision: pos.Trailing.OnPrice(price, now)}
	if pos.Side == side {
		// Same side: merge into the weighted-average cost basis.
		totalCost := pos.OpenPrice*pos.Quantity + price*quantity
		pos.Quantity += quantity
		pos.OpenPrice = totalCost / pos.Quantity
		pos.CurrentPrice = price
		return result, true
	}

	if quantity >= pos.Quantity {
		result.Closed = true
		result.Realized = pos.PnL(price, pos.Quantity)
		b.remove(key)
		return result, true
	}
	result.Reduced = true
	result.Realized = pos.PnL(price, quantity)
	pos.Quantity -= quantity
	pos.CurrentPrice = price
	return result, true
}

// remove deletes a position and its index entry. Caller holds the lock.
func (b *Book) remove(key Key) {
	delete(b.positions, key)
	if keys, ok := b.mintKeys[key.Mint]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(b.mintKeys, key.Mint)
		}
	}
}

// Lookup returns a copy of the position for (trader, mint).
func (b *Book) Lookup(trader, mint string) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[Key{Trader: trader, Mint: mint}]
	if !ok {
		return Position{}, false
	}
	return b.copyPosition(pos), true
}

// PositionsForMint returns copies of every position holding mint. An index
// key that does not resolve in the primary map is a bug in the book itself;
// it is logged loudly and skipped rather than crashing the ingest path.
func (b *Book) PositionsForMint(mint string) []Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys, ok := b.mintKeys[mint]
	if !ok {
		return nil
	}
	out := make([]Position, 0, len(keys))
	for key := range keys {
		pos, ok := b.positions[key]
		if !ok {
			b.log.Error("mint index entry without position",
				zap.String("trader", key.Trader), zap.String("mint", key.Mint))
			continue
		}
		out = append(out, b.copyPosition(pos))
	}
	return out
}

func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.positions)
}

// Positions returns copies of every open position, for persistence.
func (b *Book) Positions() []Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, b.copyPosition(pos))
	}
	return out
}

// Restore reinserts previously persisted positions, rebuilding the mint
// index. Entries without a trailing machine or with zero quantity are skipped.
func (b *Book) Restore(positions []Position) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	restored := 0
	for i := range positions {
		pos := positions[i]
		if pos.Trailing == nil || pos.Quantity <= 0 {
			continue
		}
		if pos.Trailing.TTLDecay <= 0 || pos.Trailing.TTLDecay >= 1 {
			pos.Trailing.TTLDecay = b.params.TTLDecay
		}
		key := Key{Trader: pos.Trader, Mint: pos.Mint}
		b.positions[key] = &pos
		keys, ok := b.mintKeys[pos.Mint]
		if !ok {
			keys = make(map[Key]struct{})
			b.mintKeys[pos.Mint] = keys
		}
		keys[key] = struct{}{}
		restored++
	}
	return restored
}

func (b *Book) copyPosition(pos *Position) Position {
	cp := *pos
	if pos.Trailing != nil {
		t := *pos.Trailing
		cp.Trailing = &t
	}
	return cp
}
