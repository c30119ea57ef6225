// Package inspect implements read-only board inspection for the CLI: listing
// a board's items with filters and fetching a single item as JSON.
package inspect

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dyluth/corkboard/pkg/board"
)

// OutputFormat specifies how to format the item list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated content
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete items as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for the list command.
// All filters are ANDed together.
type FilterCriteria struct {
	SinceTimestampMs int64  // items updated at or after, 0 = no filter
	UntilTimestampMs int64  // items updated at or before, 0 = no filter
	LockedOnly       bool   // only items currently holding an edit lock
	ContentGlob      string // glob pattern against content, empty = no filter
}

// matchesFilter returns true if the item matches all filter criteria.
func (fc *FilterCriteria) matchesFilter(item *board.Item) bool {
	if fc.SinceTimestampMs > 0 && item.UpdatedAtMs < fc.SinceTimestampMs {
		return false
	}
	if fc.UntilTimestampMs > 0 && item.UpdatedAtMs > fc.UntilTimestampMs {
		return false
	}

	if fc.LockedOnly && item.LockHolder == "" {
		return false
	}

	if fc.ContentGlob != "" {
		matched, err := filepath.Match(fc.ContentGlob, item.Content)
		if err != nil || !matched {
			return false
		}
	}

	return true
}

// ListItems retrieves all items on the client's board and writes them to the
// provided writer. Uses Redis SCAN to iterate item keys without blocking the
// server, and fetches each item individually so lock state is attached.
// Applies filter criteria if provided. Sorts items by creation time for
// stable output. Skips malformed items with a warning to stderr but continues
// processing.
func ListItems(ctx context.Context, client *board.Client, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	pattern := board.ItemKeyPattern(client.BoardID())
	prefix := fmt.Sprintf("corkboard:%s:item:", client.BoardID())
	iter := client.RedisClient().Scan(ctx, 0, pattern, 0).Iterator()

	var items []*board.Item

	for iter.Next(ctx) {
		key := iter.Val()
		itemID := key[len(prefix):]

		item, err := client.GetItem(ctx, itemID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping malformed item: key=%s (error: %v)\n", key, err)
			continue
		}

		if filters != nil && !filters.matchesFilter(item) {
			continue
		}

		items = append(items, item)
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan items: %w", err)
	}

	// Oldest first for chronological output
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAtMs < items[j].CreatedAtMs
	})

	switch format {
	case OutputFormatDefault:
		FormatTable(w, items, client.BoardID())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, items); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
