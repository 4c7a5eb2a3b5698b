package state

import (
	"context"
	"encoding/json"
	"strings"

	"sol-signal-bot/internal/book"
)

const BookSnapshotKey = "book:last_snapshot"

// BookSnapshot captures every open position, trailing machine included, so a
// restart resumes the same decisions it would have made.
type BookSnapshot struct {
	Positions   []book.Position `json:"positions"`
	UpdatedAtMS int64           `json:"updated_at_ms"`
}

func LoadBookSnapshot(ctx context.Context, store Store) (BookSnapshot, bool, error) {
	if store == nil {
		return BookSnapshot{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, BookSnapshotKey)
	if err != nil {
		return BookSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return BookSnapshot{}, false, nil
	}
	var snapshot BookSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return BookSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveBookSnapshot(ctx context.Context, store Store, snapshot BookSnapshot) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, BookSnapshotKey, string(payload))
}
