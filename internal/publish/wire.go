package publish

import (
	"bytes"
	"errors"

	"github.com/vmihailenco/msgpack/v5"

	"sol-signal-bot/internal/swap"
)

// Swap frames on the durable stream are msgpack maps with a fixed field
// order, encoded explicitly so the wire layout never depends on struct tags.
func EncodeSwapFrame(result swap.Result) ([]byte, error) {
	if result.TxID == "" {
		return nil, errors.New("swap frame requires a tx id")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(12); err != nil {
		return nil, err
	}
	fields := []struct {
		key   string
		write func(*msgpack.Encoder) error
	}{
		{"side", func(e *msgpack.Encoder) error { return e.EncodeString(string(result.Side)) }},
		{"token_amount", func(e *msgpack.Encoder) error { return e.EncodeFloat64(result.TokenAmount) }},
		{"ref_amount", func(e *msgpack.Encoder) error { return e.EncodeFloat64(result.RefAmount) }},
		{"price", func(e *msgpack.Encoder) error { return e.EncodeFloat64(result.Price) }},
		{"price_usd", func(e *msgpack.Encoder) error { return e.EncodeFloat64(result.PriceUSD) }},
		{"total_usd", func(e *msgpack.Encoder) error { return e.EncodeFloat64(result.TotalUSD) }},
		{"degenerate", func(e *msgpack.Encoder) error { return e.EncodeBool(result.Degenerate) }},
		{"tx_id", func(e *msgpack.Encoder) error { return e.EncodeString(result.TxID) }},
		{"trader", func(e *msgpack.Encoder) error { return e.EncodeString(result.Trader) }},
		{"mint", func(e *msgpack.Encoder) error { return e.EncodeString(result.Mint) }},
		{"pool", func(e *msgpack.Encoder) error { return e.EncodeString(result.Pool) }},
		{"timestamp", func(e *msgpack.Encoder) error { return e.EncodeInt64(result.Timestamp) }},
	}
	for _, field := range fields {
		if err := enc.EncodeString(field.key); err != nil {
			return nil, err
		}
		if err := field.write(enc); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeSwapFrame is the inverse of EncodeSwapFrame, for consumers that read
// the stream back.
func DecodeSwapFrame(data []byte) (swap.Result, error) {
	var frame map[string]any
	if err := msgpack.Unmarshal(data, &frame); err != nil {
		return swap.Result{}, err
	}
	result := swap.Result{
		Side:        swap.Side(stringField(frame, "side")),
		TokenAmount: floatField(frame, "token_amount"),
		RefAmount:   floatField(frame, "ref_amount"),
		Price:       floatField(frame, "price"),
		PriceUSD:    floatField(frame, "price_usd"),
		TotalUSD:    floatField(frame, "total_usd"),
		TxID:        stringField(frame, "tx_id"),
		Trader:      stringField(frame, "trader"),
		Mint:        stringField(frame, "mint"),
		Pool:        stringField(frame, "pool"),
		Timestamp:   int64(floatField(frame, "timestamp")),
	}
	if v, ok := frame["degenerate"].(bool); ok {
		result.Degenerate = v
	}
	if result.TxID == "" {
		return swap.Result{}, errors.New("swap frame missing tx id")
	}
	return result, nil
}

func stringField(frame map[string]any, key string) string {
	s, _ := frame[key].(string)
	return s
}

func floatField(frame map[string]any, key string) float64 {
	switch v := frame[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		return 0
	}
}
