package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/corkboard/internal/inspect"
	"github.com/dyluth/corkboard/internal/printer"
	"github.com/dyluth/corkboard/internal/resolver"
)

var getCmd = &cobra.Command{
	Use:   "get ITEM_ID",
	Short: "Show one item as pretty-printed JSON",
	Long: `Fetch a single item and print it as JSON, including version, position and
current lock holder.

Supports short IDs: any unique prefix of at least 6 characters resolves to
the full UUID.

Examples:
  corkboard get 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  corkboard get 1b4e28
  corkboard get --board planning 1b4e28`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	shortID := args[0]

	client, err := connectBoard(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	itemID, err := resolver.ResolveItemID(ctx, client, shortID)
	if err != nil {
		if resolver.IsNotFoundError(err) {
			return printer.Error(
				fmt.Sprintf("item with ID '%s' not found", shortID),
				fmt.Sprintf("The item does not exist on board '%s'.", boardName),
				[]string{
					"List all items:\n  corkboard list",
					"Check the target board:\n  corkboard get --board <name> " + shortID,
				},
			)
		}
		if resolver.IsAmbiguousError(err) {
			fmt.Fprintln(os.Stderr, resolver.FormatAmbiguousError(err.(*resolver.AmbiguousError)))
			return fmt.Errorf("ambiguous short ID")
		}
		return fmt.Errorf("failed to resolve item ID: %w", err)
	}

	if err := inspect.GetItem(ctx, client, itemID, os.Stdout); err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}

	return nil
}
