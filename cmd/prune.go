package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
)

var (
	pruneOlderThan int
	pruneAgentType string
	pruneProject   string
	pruneAgentID   string
	pruneAll       bool
	pruneYes       bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete sessions in bulk",
	Long: `Delete many sessions at once. Pick exactly one mode:

  --older-than N    sessions created more than N days ago
                    (narrowed by --agent-type and --project)
  --agent ID        every session of one agent instance
  --project NAME    every session of one project
  --all --yes       every session`,
	Example: `  session-vault prune --older-than 90 --agent-type cursor
  session-vault prune --project old-prototype`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan := cmd.Flags().Changed("older-than")
		modes := 0
		for _, set := range []bool{olderThan, pruneAgentID != "", pruneAll, pruneProject != "" && !olderThan} {
			if set {
				modes++
			}
		}
		if modes != 1 {
			return &internal.ValidationError{Field: "flags", Message: "choose exactly one of --older-than, --agent, --project or --all"}
		}
		if pruneAgentType != "" && !olderThan {
			return &internal.ValidationError{Field: "agent-type", Message: "only applies together with --older-than"}
		}
		agentType := internal.AgentType(pruneAgentType)
		if agentType != "" && !agentType.Valid() {
			return &internal.ValidationError{Field: "agent-type", Message: fmt.Sprintf("unknown agent type %q", pruneAgentType)}
		}
		if pruneAll && !pruneYes {
			return &internal.ValidationError{Field: "all", Message: "deleting every session requires --yes"}
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		var n int64
		err = internal.ShowProgress(cmd.Context(), "Pruning sessions", func() error {
			var err error
			switch {
			case olderThan:
				n, err = st.DeleteOlderThan(cmd.Context(), pruneOlderThan, agentType, pruneProject)
			case pruneAgentID != "":
				n, err = st.DeleteByAgent(cmd.Context(), pruneAgentID)
			case pruneProject != "":
				n, err = st.DeleteByProject(cmd.Context(), pruneProject)
			default:
				n, err = st.DeleteAll(cmd.Context())
			}
			return err
		})
		if err != nil {
			return err
		}

		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted %d session(s)", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().IntVar(&pruneOlderThan, "older-than", 0, "Delete sessions created more than this many days ago")
	pruneCmd.Flags().StringVar(&pruneAgentType, "agent-type", "", "With --older-than, only this agent type")
	pruneCmd.Flags().StringVarP(&pruneProject, "project", "p", "", "Delete this project's sessions, or narrow --older-than")
	pruneCmd.Flags().StringVar(&pruneAgentID, "agent", "", "Delete every session of this agent id")
	pruneCmd.Flags().BoolVar(&pruneAll, "all", false, "Delete every session")
	pruneCmd.Flags().BoolVarP(&pruneYes, "yes", "y", false, "Confirm --all")
}
