package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Re-run eviction against the configured limits",
		Long:  "Evaluate every stored item against the size limits and evict until the store fits. Idempotent: a second run with the same limits removes nothing.",
		Run:   runPrune,
	}

	RootCmd.AddCommand(cmd)
}

func runPrune(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := s.Prune(cmd.Context())
	if err != nil {
		exitErr("prune", err)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}
