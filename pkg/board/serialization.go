package board

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Storing items as
// individual hash fields keeps single fields queryable and lets the
// compare-and-set scripts touch only the fields a write changes.

// ItemToHash converts an Item struct to a Redis hash format.
// Lock fields are not included: lock state lives in its own key.
func ItemToHash(i *Item) map[string]interface{} {
	return map[string]interface{}{
		"id":            i.ID,
		"board_id":      i.BoardID,
		"x":             i.X,
		"y":             i.Y,
		"content":       i.Content,
		"metadata":      i.Metadata,
		"version":       i.Version,
		"created_at_ms": i.CreatedAtMs,
		"updated_at_ms": i.UpdatedAtMs,
	}
}

// HashToItem converts a Redis hash to an Item struct.
func HashToItem(hash map[string]string) (*Item, error) {
	x, err := strconv.Atoi(hash["x"])
	if err != nil {
		return nil, fmt.Errorf("invalid x field: %w", err)
	}

	y, err := strconv.Atoi(hash["y"])
	if err != nil {
		return nil, fmt.Errorf("invalid y field: %w", err)
	}

	version, err := strconv.Atoi(hash["version"])
	if err != nil {
		return nil, fmt.Errorf("invalid version field: %w", err)
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	return &Item{
		ID:          hash["id"],
		BoardID:     hash["board_id"],
		X:           x,
		Y:           y,
		Content:     hash["content"],
		Metadata:    hash["metadata"],
		Version:     version,
		CreatedAtMs: createdAtMs,
		UpdatedAtMs: updatedAtMs,
	}, nil
}

// HashToLock converts a Redis lock hash to a Lock struct.
func HashToLock(itemID string, hash map[string]string) (*Lock, error) {
	acquiredAtMs, err := strconv.ParseInt(hash["acquired_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid acquired_at_ms field: %w", err)
	}

	expiresAtMs, err := strconv.ParseInt(hash["expires_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at_ms field: %w", err)
	}

	return &Lock{
		ItemID:       itemID,
		Holder:       hash["holder"],
		AcquiredAtMs: acquiredAtMs,
		ExpiresAtMs:  expiresAtMs,
	}, nil
}
