package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Securely delete a stored file",
	Long: `Resolve a stored file (same tolerant matching as 'get'), overwrite
its blob with random bytes and remove it.

By default you are prompted to confirm. Use --yes to skip the prompt.`,
	Aliases: []string{"rm", "remove"},
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip confirmation prompt")
}

func runDelete(_ *cobra.Command, args []string) error {
	if !deleteYes {
		if !PromptConfirm(fmt.Sprintf("Permanently delete '%s'?", args[0])) {
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

	res, err := v.Delete(args[0], password)
	if err != nil {
		return err
	}

	Success("Deleted %s", res.Name)
	if res.Degraded {
		Warning("Blob was removed without a secure overwrite")
	}
	return nil
}
