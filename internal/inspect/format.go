package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/corkboard/pkg/board"
)

// FormatTable writes items as a formatted table to the provided writer.
// Columns: ID, VER, X, Y, LOCKED BY, AGE, and CONTENT (truncated).
// Returns the number of items formatted.
func FormatTable(w io.Writer, items []*board.Item, boardID string) int {
	if len(items) == 0 {
		fmt.Fprintf(w, "No items found on board '%s'\n", boardID)
		return 0
	}

	fmt.Fprintf(w, "Items on board '%s':\n\n", boardID)

	fmt.Fprintf(w, "%-10s %-5s %-5s %-5s %-18s %-8s %s\n",
		"ID", "VER", "X", "Y", "LOCKED BY", "AGE", "CONTENT")
	fmt.Fprintf(w, "%-10s %-5s %-5s %-5s %-18s %-8s %s\n",
		"----------", "-----", "-----", "-----", "------------------", "--------", "----------------------------------------")

	for _, item := range items {
		fmt.Fprintf(w, "%-10s %-5s %-5d %-5d %-18s %-8s %s\n",
			formatID(item.ID),
			formatVersion(item.Version),
			item.X,
			item.Y,
			formatLockHolder(item.LockHolder),
			formatTimestamp(item.UpdatedAtMs),
			formatContent(item.Content),
		)
	}

	countMsg := "item"
	if len(items) != 1 {
		countMsg = "items"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(items), countMsg)

	return len(items)
}

// FormatJSONL writes items as line-delimited JSON (JSONL) to the provided
// writer. Each item is written as a single JSON object on its own line.
// This format is ideal for streaming and processing with tools like jq.
func FormatJSONL(w io.Writer, items []*board.Item) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal item to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single item as pretty-printed JSON to the
// provided writer. Used in get mode to display complete item details.
func FormatSingleJSON(w io.Writer, item *board.Item) error {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal item to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)

	return nil
}

// formatID truncates an item ID to its first 8 characters for compact display.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatVersion shows "v1", "v2", etc., or "-" for a never-updated item.
func formatVersion(version int) string {
	if version == 0 {
		return "-"
	}
	return fmt.Sprintf("v%d", version)
}

// formatLockHolder formats the lock holder for table display.
// Unlocked items return "-".
func formatLockHolder(holder string) string {
	if holder == "" {
		return "-"
	}
	if len(holder) > 18 {
		return holder[:15] + "..."
	}
	return holder
}

// formatContent truncates content to its first non-empty line, max 40
// characters, for table display. Empty content returns "-".
func formatContent(content string) string {
	if content == "" {
		return "-"
	}

	var firstLine string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			firstLine = trimmed
			break
		}
	}

	if firstLine == "" {
		return "-"
	}

	if len(firstLine) > 40 {
		return firstLine[:37] + "..."
	}

	return firstLine
}

// formatTimestamp formats a Unix millisecond timestamp as relative age,
// like "2m ago" or "1h ago".
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	t := time.Unix(timestampMs/1000, (timestampMs%1000)*1000000)
	diff := time.Since(t)

	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}
