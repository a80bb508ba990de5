package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Khoirul-Yardan/JUMANV4/internal/storage"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored files",
	Long: `List the names of all encrypted blobs in the vault.

Each line is <identifier>__<original-name>.jmn; both parts are accepted
by 'get' and 'delete'. Listing needs no password because names are the
only thing revealed.`,
	Aliases: []string{"ls"},
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(_ *cobra.Command, _ []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	names, err := v.List()
	if err != nil {
		return fmt.Errorf("list stored files: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if names == nil {
			names = []string{}
		}
		return enc.Encode(names)
	}

	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "No stored files.")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Add one with: juman store FILE")
		return nil
	}

	for _, name := range names {
		fmt.Printf("%s\t%s\n", name, storage.OriginalName(name))
	}
	return nil
}
