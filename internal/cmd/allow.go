package cmd

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/thatjpcsguy/peekfs/internal/config"
	"github.com/thatjpcsguy/peekfs/internal/store"
	"github.com/thatjpcsguy/peekfs/internal/token"
)

// NewAllowCmd creates the allow command
func NewAllowCmd() *cobra.Command {
	var (
		ttl  int
		head int
		tail int
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "allow <path>",
		Short: "Authorize a file and print its URL",
		Long: `Authorizes a single file for time-limited access, starts the resident
service if it is not already running, and prints the share URL.

The URL is the only thing written to stdout, so it can be captured directly:

  open "$(peekfs allow ./report.md)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if head > 0 && tail > 0 {
				return fmt.Errorf("--head and --tail are mutually exclusive")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.FileTTL
			}

			window := store.LineWindow{}
			if head > 0 {
				window = store.LineWindow{Mode: store.LineHead, Count: head}
			} else if tail > 0 {
				window = store.LineWindow{Mode: store.LineTail, Count: tail}
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			auth, err := token.NewService(st).Allow(args[0], time.Duration(ttl)*time.Second, window)
			if err != nil {
				return err
			}

			fmt.Println(shareURL(cfg, host, port, "/f/"+auth.Token+"/"+url.PathEscape(auth.FileName)))

			startService()
			return nil
		},
	}

	cmd.Flags().IntVar(&ttl, "ttl", 0, "Time-to-live in seconds (default: config file_ttl)")
	cmd.Flags().IntVar(&head, "head", 0, "Only serve the first N lines")
	cmd.Flags().IntVar(&tail, "tail", 0, "Only serve the last N lines")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "Port used in the printed URL")
	cmd.Flags().StringVar(&host, "host", "localhost", "Host used in the printed URL")

	return cmd
}

// startService makes sure the resident service is up. Failures are
// warnings on stderr, never errors: the authorization is already stored,
// and the next allow will retry the start. It is a variable so tests can
// avoid spawning the test binary.
var startService = func() {
	sup, err := newSupervisor()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}

	pid, started, err := sup.EnsureRunning()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}
	if started {
		fmt.Fprintf(os.Stderr, "Service started (pid %d)\n", pid)
	}
}
