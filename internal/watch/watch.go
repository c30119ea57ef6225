// Package watch streams a board's change events for the CLI.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/corkboard/pkg/board"
)

// OutputFormat specifies how streamed events are rendered.
type OutputFormat string

const (
	// OutputFormatDefault renders one human-readable line per event
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON renders events as line-delimited JSON
	OutputFormatJSON OutputFormat = "json"
)

// Stream subscribes to the board's change bus and writes every event to w
// until the context is cancelled. History is not replayed; only events
// committed after the subscription starts are delivered. Returns nil on
// cancellation and an error if the subscription drops.
func Stream(ctx context.Context, client *board.Client, format OutputFormat, w io.Writer) error {
	sub, err := client.SubscribeEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to board: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-sub.Errors():
			if ok && err != nil {
				return fmt.Errorf("event stream failed: %w", err)
			}

		case event, ok := <-sub.Events():
			if !ok {
				return fmt.Errorf("event stream closed; reconnect to resume watching")
			}
			if err := writeEvent(w, event, format); err != nil {
				return err
			}
		}
	}
}

// PollForItem polls until an item appears on the board, for commands that
// need to wait on another client's write. Polls every 200ms up to timeout.
func PollForItem(ctx context.Context, client *board.Client, itemID string, timeout time.Duration) (*board.Item, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for item after %v", timeout)

		case <-ticker.C:
			item, err := client.GetItem(ctx, itemID)
			if err != nil {
				if board.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to query for item: %w", err)
			}
			return item, nil
		}
	}
}

func writeEvent(w io.Writer, event *board.ChangeEvent, format OutputFormat) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	ts := time.UnixMilli(event.EmittedAtMs).Format("15:04:05")
	line := fmt.Sprintf("%s  %-13s item=%.8s v=%d", ts, event.Type, event.ItemID, event.Version)

	switch event.Type {
	case board.ChangeCreated, board.ChangeUpdated:
		if event.X != nil && event.Y != nil {
			line += fmt.Sprintf(" pos=(%d,%d)", *event.X, *event.Y)
		}
		if event.Content != nil {
			line += fmt.Sprintf(" content=%q", truncate(*event.Content, 30))
		}
	case board.ChangeLockAcquired:
		line += " holder=" + event.LockHolder
	}

	if event.SourceSessionID != "" {
		line += fmt.Sprintf(" by=%.8s", event.SourceSessionID)
	}

	_, err := fmt.Fprintln(w, line)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
