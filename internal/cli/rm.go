package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete items by id",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	for _, id := range args {
		if err := s.Delete(cmd.Context(), id); err != nil {
			exitErr("rm "+id, err)
		}
	}
	fmt.Printf("{\"deleted\":%d}\n", len(args))
}
