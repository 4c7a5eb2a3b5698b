package ingest

import (
	"encoding/json"

	"sol-signal-bot/internal/swap"
)

type Kind string

// The recognized swap-producing event kinds. Anything else decodes to
// KindUnrecognized and is counted upstream instead of silently dropped.
const (
	KindTrade        Kind = "trade"
	KindBalances     Kind = "balances"
	KindUnrecognized Kind = "unrecognized"
)

// TradeEvent is a decoded trade fill with self-reported amounts, as emitted
// by bonding-curve style programs that log the fill in the instruction data.
type TradeEvent struct {
	Signature   string
	Trader      string
	Mint        string
	IsBuy       bool
	TokenAmount float64
	SolAmount   float64
	Timestamp   int64
	Slot        uint64
}

// BalanceEvent carries the raw pre/post token-balance lists of a transaction
// whose instruction payload cannot be trusted; the analyzer reconstructs the
// trade from the deltas alone.
type BalanceEvent struct {
	Signature string
	Pool      string
	BlockTime int64
	Slot      uint64
	Pre       []swap.TokenBalance
	Post      []swap.TokenBalance
}

// Envelope is the tagged variant over decoded events. Exactly one of Trade
// and Balance is set for the matching kind.
type Envelope struct {
	Kind    Kind
	Trade   *TradeEvent
	Balance *BalanceEvent
	Raw     json.RawMessage
}

// Decode classifies one message from the decoder feed. Malformed or unknown
// payloads come back as KindUnrecognized with the raw bytes attached; decode
// never fails.
func Decode(data json.RawMessage) Envelope {
	var frame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return Envelope{Kind: KindUnrecognized, Raw: data}
	}
	switch Kind(frame.Type) {
	case KindTrade:
		if event, ok := decodeTrade(frame.Data); ok {
			return Envelope{Kind: KindTrade, Trade: event, Raw: data}
		}
	case KindBalances:
		if event, ok := decodeBalances(frame.Data); ok {
			return Envelope{Kind: KindBalances, Balance: event, Raw: data}
		}
	}
	return Envelope{Kind: KindUnrecognized, Raw: data}
}

func decodeTrade(data json.RawMessage) (*TradeEvent, bool) {
	fields, ok := toMap(data)
	if !ok {
		return nil, false
	}
	event := &TradeEvent{
		Signature:   stringFromAny(fields["signature"]),
		Trader:      stringFromAny(fields["trader"]),
		Mint:        stringFromAny(fields["mint"]),
		IsBuy:       boolFromAny(fields["is_buy"]),
		TokenAmount: floatFromAny(fields["token_amount"]),
		SolAmount:   floatFromAny(fields["sol_amount"]),
		Timestamp:   int64FromAny(fields["timestamp"]),
		Slot:        uint64FromAny(fields["slot"]),
	}
	if event.Trader == "" || event.Mint == "" {
		return nil, false
	}
	return event, true
}

func decodeBalances(data json.RawMessage) (*BalanceEvent, bool) {
	fields, ok := toMap(data)
	if !ok {
		return nil, false
	}
	event := &BalanceEvent{
		Signature: stringFromAny(fields["signature"]),
		Pool:      stringFromAny(fields["pool"]),
		BlockTime: int64FromAny(fields["block_time"]),
		Slot:      uint64FromAny(fields["slot"]),
		Pre:       decodeBalanceList(fields["pre"]),
		Post:      decodeBalanceList(fields["post"]),
	}
	if event.Signature == "" {
		return nil, false
	}
	return event, true
}

func decodeBalanceList(v any) []swap.TokenBalance {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]swap.TokenBalance, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, swap.TokenBalance{
			Mint:     stringFromAny(entry["mint"]),
			Amount:   rawAmountFromAny(entry["amount"]),
			UIAmount: floatFromAny(entry["ui_amount"]),
			Decimals: uint8(int64FromAny(entry["decimals"])),
			Owner:    stringFromAny(entry["owner"]),
		})
	}
	return out
}
