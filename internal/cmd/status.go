package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/thatjpcsguy/peekfs/internal/daemon"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the resident service is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, err := newSupervisor()
			if err != nil {
				return err
			}

			green := color.New(color.FgGreen).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()

			state, pid := sup.Inspect()
			switch state {
			case daemon.Running:
				fmt.Printf("Service is %s (pid %d)\n", green("running"), pid)
			case daemon.Stale:
				fmt.Printf("Service is %s (stale handle left by pid %d)\n", yellow("not running"), pid)
			default:
				fmt.Println("Service is not running")
			}

			st, err := openStore()
			if err != nil {
				fmt.Printf("Warning: failed to open store: %v\n", err)
				return nil
			}
			defer func() { _ = st.Close() }()

			count, err := st.CountActive(time.Now())
			if err != nil {
				fmt.Printf("Warning: failed to count authorizations: %v\n", err)
				return nil
			}
			fmt.Printf("Active authorizations: %d\n", count)

			return nil
		},
	}
}
