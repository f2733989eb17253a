package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Store a memory item",
		Long:  "Store a memory item. Text can be a positional arg or piped via stdin. Eviction runs immediately after the write.",
		Run:   runAdd,
	}

	cmd.Flags().String("meta", "", "Metadata as k=v pairs, comma-separated")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	metaStr, _ := cmd.Flags().GetString("meta")

	// Text: positional arg first, then check stdin
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}

	if strings.TrimSpace(text) == "" {
		exitErr("add", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	meta := parseMeta(metaStr)

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := s.Add(cmd.Context(), strings.TrimSpace(text), meta)
	if err != nil {
		exitErr("add", err)
	}

	item, err := s.Get(cmd.Context(), id)
	if err != nil {
		// admitted but already evicted by the post-add pass
		fmt.Printf("{\"id\":%q,\"evicted\":true}\n", id)
		return
	}

	b, _ := json.Marshal(item)
	fmt.Println(string(b))
}

func parseMeta(s string) map[string]string {
	if s == "" {
		return nil
	}
	meta := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		meta[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return meta
}
