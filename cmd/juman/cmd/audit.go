package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent vault operations",
	Long: `Show the most recent entries of the local operation log.

The log records operation names, blob names and reduced-assurance
flags only; it never holds passwords, keys or file contents.`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "maximum entries to show")
}

func runAudit(_ *cobra.Command, _ []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	entries, err := v.AuditRecent(auditLimit)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No recorded operations.")
		return nil
	}

	for _, e := range entries {
		flag := ""
		if e.Degraded {
			flag = "\t(degraded)"
		}
		fmt.Printf("%s\t%-8s\t%s%s\n", e.At.Local().Format(time.RFC3339), e.Op, e.Target, flag)
	}
	return nil
}
