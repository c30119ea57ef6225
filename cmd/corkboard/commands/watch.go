package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/corkboard/internal/printer"
	"github.com/dyluth/corkboard/internal/watch"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream a board's change events live",
	Long: `Stream a board's change events as they are committed.

Creations, moves, edits, deletions and lock transitions are printed one per
line. History is not replayed; the stream starts at the moment of
subscription.

Output Formats:
  default - Human-readable lines with timestamps
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the default board
  corkboard watch

  # Watch a named board
  corkboard watch --board planning

  # Export events as JSON
  corkboard watch --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := connectBoard(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if outputFormat == watch.OutputFormatDefault {
		printer.Info("Watching board '%s' (Ctrl-C to stop)\n", boardName)
	}

	return watch.Stream(ctx, client, outputFormat, os.Stdout)
}
