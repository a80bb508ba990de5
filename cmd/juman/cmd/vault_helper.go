package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Khoirul-Yardan/JUMANV4/internal/vault"
)

// getDataDir returns the vault directory.
// Priority: --data-dir flag > JUMAN_DATA_DIR env / config file > ~/Documents/JuMan
func getDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if dir := viper.GetString("data_dir"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "JuMan"
	}
	return filepath.Join(home, "Documents", "JuMan")
}

// openVault builds a Vault for the configured directory. There is no
// unlock step: each operation takes the password itself.
func openVault() (*vault.Vault, error) {
	return vault.Open(getDataDir(), vault.Options{
		Iterations:  viper.GetInt("iterations"),
		ShredPasses: viper.GetInt("shred_passes"),
	})
}

// getPassword reads the vault password from JUMAN_PASSWORD (for
// scripting and CI) or prompts interactively with echo disabled.
func getPassword() (string, error) {
	if password := os.Getenv("JUMAN_PASSWORD"); password != "" {
		return password, nil
	}
	return promptPassword("Enter password: ")
}

// promptPassword reads a password from the terminal with echo disabled.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

// promptPasswordConfirm prompts for a password twice and ensures they match.
func promptPasswordConfirm() (string, error) {
	pass, err := promptPassword("Enter password: ")
	if err != nil {
		return "", err
	}
	if pass == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pass, nil
}
