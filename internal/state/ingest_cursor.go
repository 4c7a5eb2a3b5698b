package state

import (
	"context"
	"strconv"
	"strings"
)

const LastSlotKey = "ingest:last_slot"

func LoadLastSlot(ctx context.Context, store Store) (uint64, bool, error) {
	if store == nil {
		return 0, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, LastSlotKey)
	if err != nil || !ok {
		return 0, false, err
	}
	slot, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false, err
	}
	return slot, true, nil
}

func SaveLastSlot(ctx context.Context, store Store, slot uint64) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return store.Set(ctx, LastSlotKey, strconv.FormatUint(slot, 10))
}
