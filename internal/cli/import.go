package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/crewkit/memstore/internal/model"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import items from a JSON export",
		Long:  "Import items from a JSON array (a file argument or stdin), preserving ids and timestamps. Eviction runs after the batch.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var in io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open import file", err)
		}
		defer f.Close()
		in = f
	}

	b, err := io.ReadAll(in)
	if err != nil {
		exitErr("read import", err)
	}

	var items []model.Item
	if err := json.Unmarshal(b, &items); err != nil {
		exitErr("parse import", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.Import(cmd.Context(), items)
	if err != nil {
		exitErr("import", err)
	}
	fmt.Printf("{\"imported\":%d}\n", n)
}
