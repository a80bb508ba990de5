package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var (
	backupName string
	restoreYes bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create an encrypted backup archive",
	Long: `Snapshot all stored blobs plus the non-secret vault metadata into a
single archive encrypted under the master key.

The wrapped master key is never part of the backup: a stolen backup
offers nothing to guess a password against. Restoring therefore needs
a vault that still has its key files.

Examples:
  juman backup
  juman backup --name weekly-snapshot`,
	RunE: runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Restore from an encrypted backup archive",
	Long: `Decrypt a .jumanbackup archive and restore its contents into the
vault, overwriting entries with the same names.

WARNING: current vault contents with matching names are replaced.

Examples:
  juman restore ~/Documents/JuMan/juman_backup_9c41d2.zip.jumanbackup`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	backupCmd.Flags().StringVar(&backupName, "name", "", "archive name (default juman_backup_<id>.zip)")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "Skip confirmation prompt")
}

func runBackup(_ *cobra.Command, _ []string) error {
	password, err := getPassword()
	if err != nil {
		return err
	}

	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	stop := startSpinner("Encrypting backup...")
	path, err := v.CreateBackup(password, backupName)
	stop()
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	Success("Backup created: %s", path)
	return nil
}

func runRestore(_ *cobra.Command, args []string) error {
	if _, err := os.Stat(args[0]); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", args[0])
	}

	if !restoreYes {
		Warning("This will overwrite current vault contents with the backup's.")
		if !PromptConfirm("Restore from backup?") {
			Info("Canceled")
			return nil
		}
	}

	password, err := getPassword()
	if err != nil {
		return err
	}

	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	stop := startSpinner("Restoring backup...")
	err = v.RestoreBackup(args[0], password)
	stop()
	if err != nil {
		return err
	}

	Success("Restore completed")
	return nil
}

// startSpinner shows a progress spinner on stderr until the returned
// stop function is called. No-op when stdout is not a terminal.
func startSpinner(message string) func() {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	s.Start()
	return s.Stop
}
