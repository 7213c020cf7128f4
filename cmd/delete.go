package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <session-id>...",
	Aliases: []string{"rm"},
	Short:   "Delete sessions by id",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if len(args) == 1 {
			found, err := st.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("session not found: %s", args[0])
			}
			internal.PrintSuccess(cmd.OutOrStdout(), "Deleted session "+args[0])
			return nil
		}

		n, err := st.DeleteMany(cmd.Context(), args)
		if err != nil {
			return err
		}
		if missing := int64(len(args)) - n; missing > 0 {
			internal.PrintWarning(cmd.ErrOrStderr(), fmt.Sprintf("%d id(s) did not exist", missing))
		}
		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted %d session(s)", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
