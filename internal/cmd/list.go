package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List authorizations",
		Long:  `Lists active authorizations with their remaining time. Use --all to include expired ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			now := time.Now()
			files, err := st.List(now, all)
			if err != nil {
				return fmt.Errorf("failed to list authorizations: %w", err)
			}
			commits, err := st.ListGit(now, all)
			if err != nil {
				return fmt.Errorf("failed to list git authorizations: %w", err)
			}

			if len(files) == 0 && len(commits) == 0 {
				if all {
					fmt.Println("No authorizations")
				} else {
					fmt.Println("No active authorizations")
				}
				return nil
			}

			if len(files) > 0 {
				fmt.Println("Files:")
				for _, a := range files {
					suffix := ""
					if desc := a.Window.Describe(); desc != "" {
						suffix = fmt.Sprintf(" (%s)", desc)
					}
					fmt.Printf("  %s  %s%s  [%s]\n", a.Token, displayPath(a.FilePath), suffix, remainingStatus(a.ExpiresAt, now))
				}
			}

			if len(commits) > 0 {
				if len(files) > 0 {
					fmt.Println()
				}
				fmt.Println("Git commits:")
				for _, g := range commits {
					short := g.Commit
					if len(short) > 12 {
						short = short[:12]
					}
					fmt.Printf("  %s  %s %s  [%s]\n", g.Token, displayPath(g.RepoPath), short, remainingStatus(g.ExpiresAt, now))
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include expired authorizations")

	return cmd
}

func remainingStatus(expiresAt, now time.Time) string {
	if expiresAt.After(now) {
		green := color.New(color.FgGreen).SprintFunc()
		return green(fmt.Sprintf("%s remaining", expiresAt.Sub(now).Truncate(time.Second)))
	}
	red := color.New(color.FgRed).SprintFunc()
	return red("expired")
}

// displayPath abbreviates the home directory to ~ for display.
func displayPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home+string(filepath.Separator)) {
		return "~/" + path[len(home)+1:]
	}
	return path
}
