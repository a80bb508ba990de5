// Package cmd provides the CLI commands for juman.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Khoirul-Yardan/JUMANV4/internal/logging"
	"github.com/Khoirul-Yardan/JUMANV4/internal/vault"
)

// Exit codes.
const (
	exitOK       = 0
	exitUsage    = 1
	exitAuth     = 2
	exitNotFound = 3
	exitIO       = 4
)

var (
	cfgFile    string
	dataDir    string
	jsonOutput bool
	verbose    bool

	// commandRan distinguishes operational failures from usage errors:
	// cobra returns before PersistentPreRun on bad flags or commands.
	commandRan bool
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "juman",
	Short: "JuMan vault - encrypted file storage protected by one password",
	Long: `JuMan vault keeps files encrypted at rest under a master key that is
itself wrapped by your password. Nothing on disk can be read without it.

Get started:
  juman init               Initialize a vault
  juman store FILE         Encrypt a file into the vault
  juman get NAME           Decrypt a stored file
  juman backup             Create an encrypted backup archive

Examples:
  juman init
  juman store tax-report.pdf
  juman list
  juman get tax-report.pdf --out ./report.pdf`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		commandRan = true
		logging.Setup(isVerbose())
	},
}

// Execute runs the root command and maps the failure to an exit code:
// 0 success, 1 usage error, 2 authentication or integrity failure,
// 3 not found, 4 I/O failure.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}

	Error("%v", err)

	switch {
	case errors.Is(err, vault.ErrAuthentication), errors.Is(err, vault.ErrIntegrity):
		fmt.Fprintln(os.Stderr, "Check the password, or restore the file from a backup if it was modified.")
		return exitAuth
	case errors.Is(err, vault.ErrNotFound):
		fmt.Fprintln(os.Stderr, "Run 'juman list' to see stored names.")
		return exitNotFound
	case errors.Is(err, vault.ErrAmbiguous):
		fmt.Fprintln(os.Stderr, "Use the full stored name or the full identifier.")
		return exitUsage
	case errors.Is(err, vault.ErrConfigMissing):
		fmt.Fprintln(os.Stderr, "Run 'juman init' first.")
		return exitIO
	case !commandRan:
		return exitUsage
	default:
		return exitIO
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.juman/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "vault directory (default ~/Documents/JuMan)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().Int("iterations", 0, "PBKDF2 iterations for new key wraps (default 200000)")
	rootCmd.PersistentFlags().Int("shred-passes", 0, "secure-erase overwrite passes (default 1)")

	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("iterations", rootCmd.PersistentFlags().Lookup("iterations"))
	viper.BindPFlag("shred_passes", rootCmd.PersistentFlags().Lookup("shred-passes"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitIO)
		}

		viper.AddConfigPath(filepath.Join(home, ".juman"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("JUMAN")
	viper.AutomaticEnv()

	// Load config file if it exists.
	_ = viper.ReadInConfig()
}

// isVerbose returns whether verbose mode is enabled.
func isVerbose() bool {
	if verbose {
		return true
	}
	return viper.GetBool("verbose")
}
