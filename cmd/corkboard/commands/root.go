package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// Flags shared by every subcommand.
var (
	configPath string
	boardName  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "corkboard",
	Short: "Corkboard - shared spatial board for collaborative prioritization",
	Long: `Corkboard is a shared two-dimensional board of cards that many clients
edit at the same time. Cards live in an abstract coordinate space, so every
participant sees the same layout whatever their window size.

The server propagates changes live over websockets, guards concurrent edits
with per-card versioning and soft locks, and keeps all state in Redis.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to corkboard.yml (default: ./corkboard.yml)")
	rootCmd.PersistentFlags().StringVarP(&boardName, "board", "b", "default", "Target board name")
}
