package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Change the vault password",
	Long: `Re-wrap the master key under a new password.

The master key itself does not change, so stored blobs and existing
backups stay readable. Only the wrap and its salt are replaced.`,
	RunE: runRotate,
}

func init() {
	rootCmd.AddCommand(rotateCmd)
}

func runRotate(_ *cobra.Command, _ []string) error {
	current, err := promptPassword("Current password: ")
	if err != nil {
		return err
	}
	next, err := promptPassword("New password: ")
	if err != nil {
		return err
	}
	if next == "" {
		return fmt.Errorf("password cannot be empty")
	}
	confirm, err := promptPassword("Confirm new password: ")
	if err != nil {
		return err
	}
	if next != confirm {
		return fmt.Errorf("passwords do not match")
	}

	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	if err := v.Rotate(current, next); err != nil {
		return fmt.Errorf("rotate password: %w", err)
	}

	Success("Password changed")
	return nil
}
