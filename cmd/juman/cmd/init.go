package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new vault",
	Long: `Initialize an encrypted vault in the data directory.

A fresh master key is generated and wrapped under your password.
Running init on an existing vault changes nothing.

Examples:
  juman init
  juman init --data-dir ~/secure/JuMan`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	password := os.Getenv("JUMAN_PASSWORD")
	if password == "" {
		var err error
		password, err = promptPasswordConfirm()
		if err != nil {
			return err
		}
	}

	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	res, err := v.Initialize(password)
	if err != nil {
		return fmt.Errorf("initialize vault: %w", err)
	}
	if res.AlreadyInitialized {
		Warning("Vault at %s is already initialized; nothing changed", v.Dir())
		return nil
	}

	Success("Vault created at %s", v.Dir())
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Next steps:")
	fmt.Fprintln(os.Stderr, "  juman store FILE    Encrypt a file into the vault")
	fmt.Fprintln(os.Stderr, "  juman list          List stored files")
	fmt.Fprintln(os.Stderr, "  juman backup        Create an encrypted backup")

	return nil
}
