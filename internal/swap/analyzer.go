package swap

import (
	"math"
	"sync"
)

type Side string

const (
	SideBuy     Side = "BUY"
	SideSell    Side = "SELL"
	SideUnknown Side = "UNKNOWN"
)

// Result is a swap reconstructed purely from balance deltas. Degenerate marks
// swaps whose price could not be computed (zero measurable token quantity);
// those are flagged and forwarded, not discarded, since zero-volume swaps are
// often wash-trading worth surfacing.
type Result struct {
	Side        Side    `json:"side"`
	TokenAmount float64 `json:"token_amount"`
	RefAmount   float64 `json:"ref_amount"`
	Price       float64 `json:"price"`
	PriceUSD    float64 `json:"price_usd"`
	TotalUSD    float64 `json:"total_usd"`
	Degenerate  bool    `json:"degenerate"`
	TxID        string  `json:"tx_id"`
	Trader      string  `json:"trader"`
	Mint        string  `json:"mint"`
	Pool        string  `json:"pool"`
	Timestamp   int64   `json:"timestamp"`
}

// Analyzer classifies swaps from pre/post balance snapshots without trusting
// any self-reported amount field. The reference entry is the pool-custodied
// reference-mint balance; everything else in the filtered snapshot belongs to
// the trader.
type Analyzer struct {
	referenceMint string
	poolAuthority string

	mu      sync.RWMutex
	usdRate float64
}

func NewAnalyzer(referenceMint, poolAuthority string, usdRate float64) *Analyzer {
	return &Analyzer{
		referenceMint: referenceMint,
		poolAuthority: poolAuthority,
		usdRate:       usdRate,
	}
}

// SetUSDRate replaces the reference-to-USD conversion rate. Collaborators may
// refresh it at any time; a single Analyze call always uses one rate.
func (a *Analyzer) SetUSDRate(rate float64) {
	a.mu.Lock()
	a.usdRate = rate
	a.mu.Unlock()
}

func (a *Analyzer) USDRate() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.usdRate
}

// Analyze turns a pre/post snapshot pair into a classified swap. It returns
// ok=false only when the reference balance cannot be located in both
// snapshots, which means direction cannot be determined at all.
func (a *Analyzer) Analyze(pre, post []TokenBalance, txID, pool string, blockTime int64) (Result, bool) {
	preRef, ok := a.findReference(pre)
	if !ok {
		return Result{}, false
	}
	postRef, ok := a.findReference(post)
	if !ok {
		return Result{}, false
	}
	preToken := a.findTraderToken(pre)
	postToken := a.findTraderToken(post)

	refDelta := postRef.UIAmount - preRef.UIAmount
	side := SideUnknown
	switch {
	case refDelta > 0:
		// The pool received reference asset: the trader paid it in.
		side = SideBuy
	case refDelta < 0:
		side = SideSell
	}

	refAmount := math.Abs(refDelta)
	tokenAmount := math.Abs(postToken.UIAmount - preToken.UIAmount)

	price := 0.0
	if tokenAmount != 0 {
		price = refAmount / tokenAmount
	}
	rate := a.USDRate()
	priceUSD := price * rate

	trader := preToken.Owner
	mint := preToken.Mint
	if trader == "" {
		trader = postToken.Owner
	}
	if mint == "" {
		mint = postToken.Mint
	}

	return Result{
		Side:        side,
		TokenAmount: tokenAmount,
		RefAmount:   refAmount,
		Price:       price,
		PriceUSD:    priceUSD,
		TotalUSD:    priceUSD * tokenAmount,
		Degenerate:  price == 0,
		TxID:        txID,
		Trader:      trader,
		Mint:        mint,
		Pool:        pool,
		Timestamp:   blockTime,
	}, true
}

func (a *Analyzer) findReference(balances []TokenBalance) (TokenBalance, bool) {
	for _, b := range balances {
		if b.Owner == a.poolAuthority && b.Mint == a.referenceMint {
			return b, true
		}
	}
	return TokenBalance{}, false
}

// findTraderToken picks the first entry that is neither the pool authority's
// nor the reference mint. A zero-balance sentinel covers first-ever
// acquisition and full liquidation, where one side of the pair is absent.
func (a *Analyzer) findTraderToken(balances []TokenBalance) TokenBalance {
	for _, b := range balances {
		if b.Owner != a.poolAuthority && b.Mint != a.referenceMint {
			return b
		}
	}
	return TokenBalance{Amount: "0"}
}
