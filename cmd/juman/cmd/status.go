package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault status",
	Long:  "Show the vault directory, whether it is initialized, the configured KDF cost, and the number of stored files and backups. Needs no password.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	st, err := v.Status()
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	PrintKeyValue("Vault", st.Dir)
	if !st.Initialized {
		PrintKeyValue("Status", "not initialized")
		return nil
	}
	PrintKeyValue("Status", "initialized")
	PrintKeyValue("KDF iterations", fmt.Sprintf("%d", st.Iterations))
	PrintKeyValue("Stored files", fmt.Sprintf("%d", st.FileCount))
	PrintKeyValue("Backups", fmt.Sprintf("%d", st.BackupCount))
	return nil
}
