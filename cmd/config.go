package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print an example configuration file",
	Long: `Print a commented configuration file with the default values. Save it as
session-vault.yaml in $SESSION_VAULT_HOME (default ~/.session-vault) or the
current directory, or pass it with --config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), config.ExampleConfig())
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
