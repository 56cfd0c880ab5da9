package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewStopCmd creates the stop command
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the resident service",
		Long: `Stops the resident service if it is running and clears its handle.
Stopping a service that is not running is not an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, err := newSupervisor()
			if err != nil {
				return err
			}

			stopped, err := sup.Stop()
			if err != nil {
				return fmt.Errorf("failed to stop service: %w", err)
			}

			if stopped {
				fmt.Println("✅ Service stopped")
			} else {
				fmt.Fprintln(os.Stderr, "Service is not running")
			}
			return nil
		},
	}
}
