package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/content"
	"github.com/iksnae/session-vault/internal/server"
)

var (
	addFile      string
	addTitle     string
	addAgentID   string
	addAgentType string
	addProject   string
	addTags      []string
	addJSON      bool
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Store a conversation",
	Long: `Store a conversation read from --file or standard input.

When no --title is given one is generated from the detected language and
topics of the conversation.`,
	Example: `  session-vault add --agent-type claude --file chat.txt --project webapp --tags auth,jwt
  pbpaste | session-vault add --agent-type cursor`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		agentType := internal.AgentType(addAgentType)
		if !agentType.Valid() {
			return &internal.ValidationError{Field: "agent-type", Message: fmt.Sprintf("unknown agent type %q", addAgentType)}
		}

		text, err := readInput(cmd, addFile)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return &internal.ValidationError{Field: "content", Message: "conversation is empty"}
		}
		if len(text) > cfg.Server.MaxContentBytes {
			return &internal.ValidationError{Field: "content", Message: fmt.Sprintf("exceeds %d bytes", cfg.Server.MaxContentBytes)}
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		title := strings.TrimSpace(addTitle)
		if title == "" {
			proc, err := newProcessor()
			if err != nil {
				return err
			}
			title = proc.Process(text).GeneratedTitle
		}

		id, err := st.Create(cmd.Context(), internal.SessionFields{
			Title:           title,
			AgentID:         addAgentID,
			AgentType:       agentType,
			ProjectContext:  addProject,
			OriginalContent: text,
			Tags:            addTags,
		})
		if err != nil {
			return err
		}

		if addJSON {
			return printJSON(cmd.OutOrStdout(), server.CreateSessionResponse{ID: id, Title: title, ContentHash: content.Hash(text)})
		}
		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Stored %q as %s", title, id))
		return nil
	},
}

// readInput returns the contents of path, or of stdin when path is empty or "-"
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path != "" && path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read standard input: %w", err)
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "Read the conversation from a file (default: stdin)")
	addCmd.Flags().StringVarP(&addTitle, "title", "t", "", "Session title (generated when empty)")
	addCmd.Flags().StringVar(&addAgentID, "agent-id", "cli", "Identifier of the agent instance")
	addCmd.Flags().StringVar(&addAgentType, "agent-type", string(internal.AgentOther), "Agent type (claude, cursor, other)")
	addCmd.Flags().StringVarP(&addProject, "project", "p", "", "Project the conversation belongs to")
	addCmd.Flags().StringSliceVar(&addTags, "tags", nil, "Comma-separated tags")
	addCmd.Flags().BoolVar(&addJSON, "json", false, "Print the result as JSON")
}
