package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store <file>",
	Short: "Encrypt a file into the vault",
	Long: `Encrypt a file into the vault storage.

The original file is securely erased after a successful store; the
encrypted blob becomes the only copy. The printed stored name (or its
identifier prefix) is what 'get' and 'delete' take.

Examples:
  juman store tax-report.pdf
  juman store ~/Downloads/passport-scan.jpg`,
	Aliases: []string{"add", "put"},
	Args:    cobra.ExactArgs(1),
	RunE:    runStore,
}

func init() {
	rootCmd.AddCommand(storeCmd)
}

func runStore(_ *cobra.Command, args []string) error {
	password, err := getPassword()
	if err != nil {
		return err
	}

	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	res, err := v.StoreFile(args[0], password)
	if err != nil {
		return fmt.Errorf("store file: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	Success("Stored as %s", res.Name)
	if !res.Hidden {
		Warning("Blob could not be marked hidden on this platform")
	}
	switch {
	case !res.SourceRemoved:
		Warning("Plaintext source could not be erased; remove %s yourself", args[0])
	case !res.SourceErased:
		Warning("Plaintext source was removed without a secure overwrite")
	}
	return nil
}
