package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/thatjpcsguy/peekfs/internal/config"
	"github.com/thatjpcsguy/peekfs/internal/token"
)

// NewAllowGitCmd creates the allow-git command
func NewAllowGitCmd() *cobra.Command {
	var (
		ttl  int
		port int
	)

	cmd := &cobra.Command{
		Use:   "allow-git <repo> <commit>",
		Short: "Authorize a git commit view and print its URL",
		Long: `Authorizes a single commit of a local repository for time-limited
viewing: commit metadata plus per-file diffs, rendered as one page. The
commit may be given as a hash, short hash, branch or tag.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.FileTTL
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			auth, err := token.NewService(st).AllowGit(args[0], args[1], time.Duration(ttl)*time.Second)
			if err != nil {
				return err
			}

			fmt.Println(shareURL(cfg, "localhost", port, "/git/"+auth.Token))

			startService()
			return nil
		},
	}

	cmd.Flags().IntVar(&ttl, "ttl", 0, "Time-to-live in seconds (default: config file_ttl)")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "Port used in the printed URL")

	return cmd
}
