// Package cli implements the memstore CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crewkit/memstore/internal/backend"
	"github.com/crewkit/memstore/internal/model"
	"github.com/crewkit/memstore/internal/store"
	"github.com/spf13/cobra"
)

var (
	dbPath     string
	maxItems   int
	maxTokens  int
	windowFlag time.Duration
	policyFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memstore",
	Short: "Bounded working memory for agent loops",
	Long:  "A bounded, self-pruning memory store for autonomous agents. SQLite-backed, single binary. Every write is followed by an eviction pass, so the store never exceeds its configured limits.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MEMSTORE_DB or ~/.memstore/memstore.db)")
	RootCmd.PersistentFlags().IntVar(&maxItems, "max-items", 0, "Max item count (0 = unbounded)")
	RootCmd.PersistentFlags().IntVar(&maxTokens, "max-tokens", 0, "Max summed token estimate (0 = unbounded)")
	RootCmd.PersistentFlags().DurationVar(&windowFlag, "window", 0, "Max item age, e.g. 24h (0 = unbounded)")
	RootCmd.PersistentFlags().StringVar(&policyFlag, "policy", "fifo", "Eviction policy: fifo, lru, ttl, reverse-chrono")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("MEMSTORE_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".memstore", "memstore.db")
}

func sizeConfig() model.SizeConfig {
	return model.SizeConfig{
		MaxItems:   maxItems,
		MaxTokens:  maxTokens,
		TimeWindow: windowFlag,
		Policy:     model.Policy(policyFlag),
	}
}

func openStore() (*store.Store, error) {
	be, err := backend.NewSQLite(getDBPath())
	if err != nil {
		return nil, err
	}
	s, err := store.New(be, store.WithConfig(sizeConfig()))
	if err != nil {
		be.Close()
		return nil, err
	}
	return s, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
