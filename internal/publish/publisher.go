package publish

import (
	"context"

	"sol-signal-bot/internal/swap"
)

// DecisionEvent is the outbound form of a trailing-engine decision, emitted
// only after the book's lock has been released.
type DecisionEvent struct {
	Trader    string  `json:"trader"`
	Mint      string  `json:"mint"`
	Decision  string  `json:"decision"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Realized  float64 `json:"realized"`
	Closed    bool    `json:"closed"`
	Timestamp int64   `json:"timestamp"`
}

type Publisher interface {
	PublishSwap(ctx context.Context, result swap.Result) error
	PublishDecision(ctx context.Context, event DecisionEvent) error
	Close() error
}

// Noop is used for dry runs and tests.
type Noop struct{}

func (Noop) PublishSwap(context.Context, swap.Result) error       { return nil }
func (Noop) PublishDecision(context.Context, DecisionEvent) error { return nil }
func (Noop) Close() error                                         { return nil }
