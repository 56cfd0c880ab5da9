package cmd

import (
	"fmt"
	"strings"

	"github.com/thatjpcsguy/peekfs/internal/config"
	"github.com/thatjpcsguy/peekfs/internal/daemon"
	"github.com/thatjpcsguy/peekfs/internal/store"
)

func openStore() (*store.Store, error) {
	if _, err := config.EnsureDir(); err != nil {
		return nil, err
	}

	path, err := config.DBPath()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open authorization store: %w", err)
	}
	return st, nil
}

func newSupervisor() (*daemon.Supervisor, error) {
	pidPath, err := config.PIDPath()
	if err != nil {
		return nil, err
	}
	logPath, err := config.LogPath()
	if err != nil {
		return nil, err
	}
	return daemon.New(pidPath, logPath), nil
}

// shareURL builds the URL printed by allow. A configured base_url replaces
// the scheme://host:port prefix and nothing else.
func shareURL(cfg *config.Config, host string, port int, path string) string {
	if cfg.BaseURL != "" {
		return strings.TrimRight(cfg.BaseURL, "/") + path
	}
	return fmt.Sprintf("http://%s:%d%s", host, port, path)
}
