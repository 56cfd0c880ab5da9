package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/thatjpcsguy/peekfs/internal/config"
	"github.com/thatjpcsguy/peekfs/internal/render"
	"github.com/thatjpcsguy/peekfs/internal/server"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var (
		port       int
		host       string
		foreground bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the resident HTTP service",
		Long: `Runs the HTTP service that answers share URLs. allow starts it in the
background automatically; run it by hand with --foreground to keep it
attached to the terminal and disable the idle shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if _, err := config.EnsureDir(); err != nil {
				return err
			}

			sup, err := newSupervisor()
			if err != nil {
				return err
			}

			// Publishing the handle is the first durable action, so a
			// concurrent start loses cleanly before binding anything.
			handle, err := sup.Acquire()
			if err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() { _ = handle.Release() }()

			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			logger.Info("peekfs serving",
				slog.String("host", host),
				slog.Int("port", port),
				slog.Int("pid", handle.PID()),
			)

			srv := server.New(server.Options{
				Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
				Store:        st,
				Renderer:     render.New(cfg.Highlight.Style, cfg.Highlight.LineNos),
				Logger:       logger,
				DisableSweep: foreground,
			})
			return srv.Run()
		},
	}

	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "Port to listen on")
	cmd.Flags().StringVar(&host, "host", config.DefaultHost, "Host to bind to")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Stay attached and never exit on idle")

	return cmd
}
