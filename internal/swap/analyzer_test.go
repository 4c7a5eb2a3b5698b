package swap

import (
	"math"
	"testing"
)

const (
	testRefMint   = "So11111111111111111111111111111111111111112"
	testAuthority = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"
	testTrader    = "Trader1111111111111111111111111111111111111"
	testMint      = "Mint111111111111111111111111111111111111111"
	testPool      = "Pool111111111111111111111111111111111111111"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(testRefMint, testAuthority, 150)
}

func refBalance(ui float64) TokenBalance {
	return TokenBalance{Mint: testRefMint, Amount: "0", UIAmount: ui, Decimals: 9, Owner: testAuthority}
}

func traderBalance(ui float64) TokenBalance {
	return TokenBalance{Mint: testMint, Amount: "0", UIAmount: ui, Decimals: 6, Owner: testTrader}
}

func TestAnalyzeClassifiesBuy(t *testing.T) {
	a := newTestAnalyzer()
	pre := []TokenBalance{refBalance(100), traderBalance(0)}
	post := []TokenBalance{refBalance(110), traderBalance(10)}

	res, ok := a.Analyze(pre, post, "sig1", testPool, 1700000000)
	if !ok {
		t.Fatalf("expected analysis to succeed")
	}
	if res.Side != SideBuy {
		t.Fatalf("expected %s, got %s", SideBuy, res.Side)
	}
	if res.RefAmount != 10 || res.TokenAmount != 10 {
		t.Fatalf("unexpected amounts ref=%f token=%f", res.RefAmount, res.TokenAmount)
	}
	if math.Abs(res.Price-1.0) > 1e-9 {
		t.Fatalf("expected price 1.0, got %f", res.Price)
	}
	if math.Abs(res.PriceUSD-150) > 1e-9 {
		t.Fatalf("expected price usd 150, got %f", res.PriceUSD)
	}
	if math.Abs(res.TotalUSD-1500) > 1e-9 {
		t.Fatalf("expected total usd 1500, got %f", res.TotalUSD)
	}
	if res.Degenerate {
		t.Fatalf("expected non-degenerate swap")
	}
	if res.Trader != testTrader || res.Mint != testMint {
		t.Fatalf("unexpected identity trader=%s mint=%s", res.Trader, res.Mint)
	}
	if res.TxID != "sig1" || res.Pool != testPool || res.Timestamp != 1700000000 {
		t.Fatalf("unexpected metadata %+v", res)
	}
}

func TestAnalyzeClassifiesSell(t *testing.T) {
	a := newTestAnalyzer()
	pre := []TokenBalance{refBalance(110), traderBalance(10)}
	post := []TokenBalance{refBalance(104), traderBalance(4)}

	res, ok := a.Analyze(pre, post, "sig2", testPool, 0)
	if !ok {
		t.Fatalf("expected analysis to succeed")
	}
	if res.Side != SideSell {
		t.Fatalf("expected %s, got %s", SideSell, res.Side)
	}
	if math.Abs(res.RefAmount-6) > 1e-9 || math.Abs(res.TokenAmount-6) > 1e-9 {
		t.Fatalf("unexpected amounts ref=%f token=%f", res.RefAmount, res.TokenAmount)
	}
}

func TestAnalyzeFailsWithoutReferenceBalance(t *testing.T) {
	a := newTestAnalyzer()
	pre := []TokenBalance{traderBalance(5)}
	post := []TokenBalance{refBalance(100), traderBalance(10)}
	if _, ok := a.Analyze(pre, post, "sig", testPool, 0); ok {
		t.Fatalf("expected failure when reference is missing from pre")
	}
	if _, ok := a.Analyze(post, pre, "sig", testPool, 0); ok {
		t.Fatalf("expected failure when reference is missing from post")
	}
}

func TestAnalyzeDegenerateSwap(t *testing.T) {
	a := newTestAnalyzer()
	pre := []TokenBalance{refBalance(100), traderBalance(10)}
	post := []TokenBalance{refBalance(105), traderBalance(10)}

	res, ok := a.Analyze(pre, post, "sig", testPool, 0)
	if !ok {
		t.Fatalf("expected analysis to succeed")
	}
	if !res.Degenerate {
		t.Fatalf("expected degenerate flag for zero token movement")
	}
	if res.Price != 0 || res.TotalUSD != 0 {
		t.Fatalf("expected zero price, got %+v", res)
	}
	if res.Side != SideBuy {
		t.Fatalf("direction still follows the reference delta, got %s", res.Side)
	}
}

func TestAnalyzeUnknownSideOnFlatReference(t *testing.T) {
	a := newTestAnalyzer()
	pre := []TokenBalance{refBalance(100), traderBalance(5)}
	post := []TokenBalance{refBalance(100), traderBalance(5)}
	res, ok := a.Analyze(pre, post, "sig", testPool, 0)
	if !ok {
		t.Fatalf("expected analysis to succeed")
	}
	if res.Side != SideUnknown {
		t.Fatalf("expected %s, got %s", SideUnknown, res.Side)
	}
}

func TestAnalyzeFirstAcquisitionUsesPostIdentity(t *testing.T) {
	a := newTestAnalyzer()
	// No trader token entry before the swap at all.
	pre := []TokenBalance{refBalance(100)}
	post := []TokenBalance{refBalance(110), traderBalance(10)}

	res, ok := a.Analyze(pre, post, "sig", testPool, 0)
	if !ok {
		t.Fatalf("expected analysis to succeed")
	}
	if res.Trader != testTrader || res.Mint != testMint {
		t.Fatalf("expected identity from the post snapshot, got trader=%s mint=%s", res.Trader, res.Mint)
	}
	if res.TokenAmount != 10 {
		t.Fatalf("expected token amount 10, got %f", res.TokenAmount)
	}
}

func TestSetUSDRateAffectsSubsequentAnalysis(t *testing.T) {
	a := newTestAnalyzer()
	a.SetUSDRate(200)
	if a.USDRate() != 200 {
		t.Fatalf("expected rate 200, got %f", a.USDRate())
	}
	pre := []TokenBalance{refBalance(100), traderBalance(0)}
	post := []TokenBalance{refBalance(101), traderBalance(1)}
	res, _ := a.Analyze(pre, post, "sig", testPool, 0)
	if math.Abs(res.PriceUSD-200) > 1e-9 {
		t.Fatalf("expected price usd 200, got %f", res.PriceUSD)
	}
}

func TestAnalyzeKeepsPoolVaultSeparateFromTrader(t *testing.T) {
	a := newTestAnalyzer()
	// The pool's own vault for the traded mint shows up in realistic
	// snapshots; its delta mirrors the trader's and must not cancel it.
	pre := Summarize([]TokenBalance{
		refBalance(100),
		{Mint: testMint, Amount: "50000000", UIAmount: 50, Decimals: 6, Owner: testAuthority},
		{Mint: testMint, Amount: "0", UIAmount: 0, Decimals: 6, Owner: testTrader},
	})
	post := Summarize([]TokenBalance{
		refBalance(110),
		{Mint: testMint, Amount: "45000000", UIAmount: 45, Decimals: 6, Owner: testAuthority},
		{Mint: testMint, Amount: "5000000", UIAmount: 5, Decimals: 6, Owner: testTrader},
	})

	res, ok := a.Analyze(pre, post, "sig", testPool, 0)
	if !ok {
		t.Fatalf("expected analysis to succeed")
	}
	if res.Side != SideBuy {
		t.Fatalf("expected %s, got %s", SideBuy, res.Side)
	}
	if res.Degenerate {
		t.Fatalf("expected a priced swap, got degenerate %+v", res)
	}
	if res.TokenAmount != 5 || res.RefAmount != 10 {
		t.Fatalf("unexpected amounts ref=%f token=%f", res.RefAmount, res.TokenAmount)
	}
	if math.Abs(res.Price-2) > 1e-9 {
		t.Fatalf("expected price 2, got %f", res.Price)
	}
	if res.Trader != testTrader || res.Mint != testMint {
		t.Fatalf("unexpected identity trader=%s mint=%s", res.Trader, res.Mint)
	}
}

func TestAnalyzeIgnoresTraderReferenceAccount(t *testing.T) {
	a := newTestAnalyzer()
	// A trader-held wrapped-reference account must not bleed into the pool's
	// reference delta.
	traderRef := func(ui float64) TokenBalance {
		return TokenBalance{Mint: testRefMint, Amount: "0", UIAmount: ui, Decimals: 9, Owner: testTrader}
	}
	pre := Summarize([]TokenBalance{refBalance(100), traderRef(20), traderBalance(0)})
	post := Summarize([]TokenBalance{refBalance(110), traderRef(10), traderBalance(10)})

	res, ok := a.Analyze(pre, post, "sig", testPool, 0)
	if !ok {
		t.Fatalf("expected analysis to succeed")
	}
	if res.Side != SideBuy || res.RefAmount != 10 {
		t.Fatalf("reference delta must come from the pool vault alone, got %+v", res)
	}
	if res.Trader != testTrader || res.Mint != testMint {
		t.Fatalf("unexpected identity trader=%s mint=%s", res.Trader, res.Mint)
	}
}

func TestSummarizeMergesPerHolding(t *testing.T) {
	entries := []TokenBalance{
		{Mint: testRefMint, Amount: "1000000000", UIAmount: 1, Decimals: 9, Owner: testAuthority},
		{Mint: testMint, Amount: "500000", UIAmount: 0.5, Decimals: 6, Owner: testTrader},
		{Mint: testRefMint, Amount: "2000000000", UIAmount: 2, Decimals: 9, Owner: testAuthority},
	}
	merged := Summarize(entries)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged entries, got %d", len(merged))
	}
	// First-seen order is preserved.
	if merged[0].Mint != testRefMint || merged[1].Mint != testMint {
		t.Fatalf("unexpected order %+v", merged)
	}
	if merged[0].Amount != "3000000000" {
		t.Fatalf("expected raw amount 3000000000, got %s", merged[0].Amount)
	}
	if math.Abs(merged[0].UIAmount-3) > 1e-9 {
		t.Fatalf("expected ui amount 3, got %f", merged[0].UIAmount)
	}
}

func TestSummarizeKeepsOwnersSeparate(t *testing.T) {
	merged := Summarize([]TokenBalance{
		{Mint: testMint, Amount: "50000000", UIAmount: 50, Decimals: 6, Owner: testAuthority},
		{Mint: testMint, Amount: "5000000", UIAmount: 5, Decimals: 6, Owner: testTrader},
	})
	if len(merged) != 2 {
		t.Fatalf("expected 2 holdings for 2 owners, got %d", len(merged))
	}
	if merged[0].Owner != testAuthority || merged[0].UIAmount != 50 {
		t.Fatalf("unexpected first holding %+v", merged[0])
	}
	if merged[1].Owner != testTrader || merged[1].UIAmount != 5 {
		t.Fatalf("unexpected second holding %+v", merged[1])
	}
}

func TestSummarizeLargeRawAmounts(t *testing.T) {
	big := "18446744073709551615" // beyond uint64 once doubled
	merged := Summarize([]TokenBalance{
		{Mint: testMint, Amount: big, UIAmount: 1, Owner: testTrader},
		{Mint: testMint, Amount: big, UIAmount: 1, Owner: testTrader},
	})
	if merged[0].Amount != "36893488147419103230" {
		t.Fatalf("expected big-int sum, got %s", merged[0].Amount)
	}
}

func TestSummarizeIgnoresMalformedRawAmounts(t *testing.T) {
	merged := Summarize([]TokenBalance{
		{Mint: testMint, Amount: "100", UIAmount: 1, Owner: testTrader},
		{Mint: testMint, Amount: "not-a-number", UIAmount: 1, Owner: testTrader},
	})
	if merged[0].Amount != "100" {
		t.Fatalf("expected malformed amount to be dropped, got %s", merged[0].Amount)
	}
	if math.Abs(merged[0].UIAmount-2) > 1e-9 {
		t.Fatalf("ui amounts still accumulate, got %f", merged[0].UIAmount)
	}
}
