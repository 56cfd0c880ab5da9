package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thatjpcsguy/peekfs/internal/token"
)

// NewRevokeCmd creates the revoke command
func NewRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token>",
		Short: "Revoke an authorization",
		Long: `Removes the authorization behind a token so its URL stops working.
Revoking a token that does not exist is not an error; either way the
token is no longer accessible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			existed, err := token.NewService(st).Revoke(args[0])
			if err != nil {
				return fmt.Errorf("failed to revoke: %w", err)
			}

			if existed {
				fmt.Printf("Revoked: %s\n", args[0])
			} else {
				fmt.Fprintf(os.Stderr, "Token not found: %s\n", args[0])
			}
			return nil
		},
	}
}
