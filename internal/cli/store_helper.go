package cli

import (
	"fmt"

	"github.com/imyousuf/megaparser/internal/config"
	"github.com/imyousuf/megaparser/internal/store"
)

// openArchiveStore opens the archive database using the config and the
// --db-path flag value.
func openArchiveStore(cfg *config.Config, dbPath string) (*store.Store, error) {
	resolvedDBPath := cfg.ResolveDBPath(dbPath)
	if resolvedDBPath == "" {
		return nil, fmt.Errorf("no archive database path; run 'megaparser init' or use --db-path")
	}

	s, err := store.Open(resolvedDBPath)
	if err != nil {
		return nil, fmt.Errorf("open archive store: %w", err)
	}
	return s, nil
}
