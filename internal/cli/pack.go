package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crewkit/memstore/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "pack [query]",
		Short: "Pack items into a token budget",
		Long:  "Select recent (or query-matching) items whose summed token estimates fit the budget, for pasting into a prompt.",
		Run:   runPack,
	}

	cmd.Flags().IntP("budget", "b", 2000, "Token budget")
	cmd.Flags().Int("candidates", store.DefaultCandidateLimit, "Candidate pool size")
	cmd.Flags().Bool("text", false, "Print item texts instead of JSON")

	RootCmd.AddCommand(cmd)
}

func runPack(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")
	candidates, _ := cmd.Flags().GetInt("candidates")
	asText, _ := cmd.Flags().GetBool("text")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	p := store.NewPacker(s)
	p.CandidateLimit = candidates

	res, err := p.Pack(cmd.Context(), strings.Join(args, " "), budget, false)
	if err != nil {
		exitErr("pack", err)
	}

	if asText {
		for _, it := range res.Items {
			fmt.Println(it.Text)
		}
		return
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}
