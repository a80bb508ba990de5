package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Khoirul-Yardan/JUMANV4/internal/storage"
)

var (
	getOut    string
	getStdout bool
)

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Decrypt a stored file",
	Long: `Decrypt a stored file and export it.

The name is matched tolerantly: the full stored name, the name without
its .jmn suffix, a case-varied form, or a prefix of the identifier all
work as long as exactly one blob matches.

Without --out the plaintext goes to a temporary file and its path is
printed. With --stdout the raw bytes go to standard output.

Examples:
  juman get tax-report.pdf --out ./report.pdf
  juman get 9371be0c
  juman get passport-scan.jpg --stdout > scan.jpg`,
	Aliases: []string{"retrieve"},
	Args:    cobra.ExactArgs(1),
	RunE:    runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVarP(&getOut, "out", "o", "", "destination path for the decrypted file")
	getCmd.Flags().BoolVar(&getStdout, "stdout", false, "write the decrypted bytes to stdout")
}

func runGet(_ *cobra.Command, args []string) error {
	password, err := getPassword()
	if err != nil {
		return err
	}

	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	name := args[0]

	if getOut != "" {
		if err := v.RetrieveTo(name, password, getOut); err != nil {
			return err
		}
		Success("Exported to %s", getOut)
		return nil
	}

	content, err := v.Retrieve(name, password)
	if err != nil {
		return err
	}

	if getStdout {
		_, err := os.Stdout.Write(content)
		return err
	}

	tmp, err := os.CreateTemp("", "juman-*"+decryptedSuffix(name))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("restrict temp file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	Info("Decrypted to %s", tmp.Name())
	Warning("The file is plaintext now; delete it when done")
	return nil
}

// decryptedSuffix picks a file extension for the exported plaintext
// from the stored name, falling back to .dec.
func decryptedSuffix(name string) string {
	if ext := filepath.Ext(storage.OriginalName(name)); ext != "" && ext != storage.BlobSuffix {
		return ext
	}
	return ".dec"
}
