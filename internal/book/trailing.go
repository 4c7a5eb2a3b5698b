package book

import (
	"time"

	"sol-signal-bot/internal/config"
)

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

type Decision string

const (
	DecisionHold Decision = "HOLD"
	DecisionExit Decision = "EXIT"
)

// Params describes the initial band geometry and the dwell-time decay applied
// on each breakout.
type Params struct {
	UpperTopPct      float64
	UpperBottomPct   float64
	UpperTTL         time.Duration
	NeutralTopPct    float64
	NeutralBottomPct float64
	NeutralTTL       time.Duration
	LowerTopPct      float64
	LowerBottomPct   float64
	LowerTTL         time.Duration
	TTLDecay         float64
}

func DefaultParams() Params {
	return Params{
		UpperTopPct:      40,
		UpperBottomPct:   20,
		UpperTTL:         5000 * time.Millisecond,
		NeutralTopPct:    20,
		NeutralBottomPct: -20,
		NeutralTTL:       10000 * time.Millisecond,
		LowerTopPct:      -20,
		LowerBottomPct:   -40,
		LowerTTL:         3000 * time.Millisecond,
		TTLDecay:         0.8,
	}
}

// ParamsFromConfig fills unset fields from the defaults so partial overrides
// keep the rest of the geometry intact.
func ParamsFromConfig(cfg config.EngineConfig) Params {
	p := DefaultParams()
	if cfg.UpperTopPct != 0 {
		p.UpperTopPct = cfg.UpperTopPct
	}
	if cfg.UpperBottomPct != 0 {
		p.UpperBottomPct = cfg.UpperBottomPct
	}
	if cfg.UpperTTL != 0 {
		p.UpperTTL = cfg.UpperTTL
	}
	if cfg.NeutralTopPct != 0 {
		p.NeutralTopPct = cfg.NeutralTopPct
	}
	if cfg.NeutralBottomPct != 0 {
		p.NeutralBottomPct = cfg.NeutralBottomPct
	}
	if cfg.NeutralTTL != 0 {
		p.NeutralTTL = cfg.NeutralTTL
	}
	if cfg.LowerTopPct != 0 {
		p.LowerTopPct = cfg.LowerTopPct
	}
	if cfg.LowerBottomPct != 0 {
		p.LowerBottomPct = cfg.LowerBottomPct
	}
	if cfg.LowerTTL != 0 {
		p.LowerTTL = cfg.LowerTTL
	}
	if cfg.TTLDecay != 0 {
		p.TTLDecay = cfg.TTLDecay
	}
	return p
}

// Trailing is the per-position breakout trailing-stop machine. Every accepted
// breakout re-anchors the upper and lower bands at the breakout price and
// shrinks their dwell-time budget, ratcheting the stop floor upward.
//
// Time never comes from the machine itself: callers sample the clock once per
// update and pass it in, so a sequence of (timestamp, price) pairs replays
// deterministically.
type Trailing struct {
	Trader string `json:"trader"`
	Mint   string `json:"mint"`

	Status     Status  `json:"status"`
	EntryPrice float64 `json:"entry_price"`
	LastPrice  float64 `json:"last_price"`

	OpenedAt       time.Time `json:"opened_at"`
	LastZoneChange time.Time `json:"last_zone_change"`

	Upper   Band `json:"upper"`
	Neutral Band `json:"neutral"`
	Lower   Band `json:"lower"`

	// Breakouts counts accepted upper-band breaches. Once it is non-zero the
	// neutral band is permanently ignored for this position.
	Breakouts int `json:"breakouts"`

	TTLDecay float64 `json:"ttl_decay"`
}

func NewTrailing(trader, mint string, entryPrice float64, now time.Time, p Params) *Trailing {
	return &Trailing{
		Trader:         trader,
		Mint:           mint,
		Status:         StatusOpen,
		EntryPrice:     entryPrice,
		LastPrice:      entryPrice,
		OpenedAt:       now,
		LastZoneChange: now,
		Upper:          NewBand(ZoneUpper, entryPrice, p.UpperTopPct, p.UpperBottomPct, p.UpperTTL),
		Neutral:        NewBand(ZoneNeutral, entryPrice, p.NeutralTopPct, p.NeutralBottomPct, p.NeutralTTL),
		Lower:          NewBand(ZoneLower, entryPrice, p.LowerTopPct, p.LowerBottomPct, p.LowerTTL),
		TTLDecay:       p.TTLDecay,
	}
}

// OnPrice decides HOLD or EXIT for a new reference price. Checks run in fixed
// priority order; only a breakout (step 4) mutates state.
func (t *Trailing) OnPrice(price float64, now time.Time) Decision {
	dwell := now.Sub(t.LastZoneChange)

	switch {
	case t.Lower.Relation(price) == RelationInside && dwell > t.Lower.TTL:
		// Lingered too long near the stop floor.
		return DecisionExit
	case t.Lower.Relation(price) == RelationBelow:
		// Hard stop breach, no dwell grace.
		return DecisionExit
	case t.Upper.Relation(price) == RelationInside && dwell > t.Upper.TTL:
		// Stalled inside the breakout band: take profit by timeout.
		return DecisionExit
	case t.Upper.Relation(price) == RelationAbove:
		t.breakout(price, now)
		return DecisionHold
	case t.Breakouts == 0 && t.Neutral.Relation(price) == RelationInside && dwell > t.Neutral.TTL:
		// No momentum established before the first breakout.
		return DecisionExit
	default:
		return DecisionHold
	}
}

func (t *Trailing) breakout(price float64, now time.Time) {
	decay := t.TTLDecay
	if decay <= 0 || decay >= 1 {
		decay = DefaultParams().TTLDecay
	}
	oldUpper := t.Upper
	t.Lower = NewBand(ZoneLower, price, oldUpper.TopPct+20, oldUpper.BottomPct, scaleTTL(t.Lower.TTL, decay))
	t.Upper = NewBand(ZoneUpper, price, oldUpper.TopPct+40, oldUpper.TopPct+20, scaleTTL(oldUpper.TTL, decay))
	t.LastZoneChange = now
	t.Breakouts++
	t.LastPrice = price
}

func scaleTTL(ttl time.Duration, decay float64) time.Duration {
	return time.Duration(float64(ttl) * decay)
}
