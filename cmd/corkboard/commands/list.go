package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/corkboard/internal/config"
	"github.com/dyluth/corkboard/internal/inspect"
	"github.com/dyluth/corkboard/internal/printer"
	"github.com/dyluth/corkboard/internal/timespec"
	"github.com/dyluth/corkboard/pkg/board"
)

var (
	listOutputFormat string
	listSince        string
	listUntil        string
	listLockedOnly   bool
	listContentGlob  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a board's items with filtering",
	Long: `List the items on a board as a table or JSONL stream.

Output Formats:
  default - Human-readable table with ID, version, position and content
  jsonl   - Line-delimited JSON, one item per line

Time Filters:
  --since  - Show items updated after this time
  --until  - Show items updated before this time

Content Filters:
  --locked   - Only items currently holding an edit lock
  --content  - Filter by content (glob pattern: "TODO*")

Examples:
  # List all items on the default board
  corkboard list

  # Recently-changed items on a named board
  corkboard list --board planning --since=2h

  # Items as JSONL for piping to jq
  corkboard list --output=jsonl | jq 'select(.version > 3) | .id'

  # Who is editing what
  corkboard list --locked`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	listCmd.Flags().StringVar(&listSince, "since", "", "Show items updated after time (duration or RFC3339)")
	listCmd.Flags().StringVar(&listUntil, "until", "", "Show items updated before time (duration or RFC3339)")
	listCmd.Flags().BoolVar(&listLockedOnly, "locked", false, "Only show items holding an edit lock")
	listCmd.Flags().StringVar(&listContentGlob, "content", "", "Filter by content (glob pattern)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var outputFormat inspect.OutputFormat
	switch listOutputFormat {
	case "default":
		outputFormat = inspect.OutputFormatDefault
	case "jsonl":
		outputFormat = inspect.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", listOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	sinceMs, untilMs, err := timespec.ParseRange(listSince, listUntil)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m' or RFC3339 like '2026-08-31T13:00:00Z'"},
		)
	}

	client, err := connectBoard(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	filters := &inspect.FilterCriteria{
		SinceTimestampMs: sinceMs,
		UntilTimestampMs: untilMs,
		LockedOnly:       listLockedOnly,
		ContentGlob:      listContentGlob,
	}

	if err := inspect.ListItems(ctx, client, outputFormat, filters, os.Stdout); err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	return nil
}

// connectBoard opens a store client for the target board and verifies Redis
// connectivity up front, so commands fail with a useful message instead of a
// timeout mid-operation.
func connectBoard(ctx context.Context) (*board.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}

	client, err := board.NewClient(redisOpts, boardName)
	if err != nil {
		return nil, fmt.Errorf("failed to create board client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.Error(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Redis.URL),
			[]string{
				"Check that Redis is running",
				"Set REDIS_URL or redis.url in corkboard.yml to the correct address",
			},
		)
	}

	return client, nil
}
