package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thatjpcsguy/peekfs/internal/cmd"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "peekfs",
		Short: "Share local files through expiring links",
		Long: `Peekfs authorizes single files or git commits for time-limited viewing
and serves them over HTTP from a background service that shuts itself
down once nothing shareable remains.`,
		Version: version,
	}

	// Add subcommands
	rootCmd.AddCommand(cmd.NewAllowCmd())
	rootCmd.AddCommand(cmd.NewAllowGitCmd())
	rootCmd.AddCommand(cmd.NewRevokeCmd())
	rootCmd.AddCommand(cmd.NewListCmd())
	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cmd.NewStopCmd())
	rootCmd.AddCommand(cmd.NewStatusCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
