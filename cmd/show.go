package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/content"
	"github.com/iksnae/session-vault/internal/export"
)

var showFormat string

var (
	// Styles for show command
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243"))

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a stored session",
	Long: `Display a stored session turn by turn, or write it in one of the export
formats (json, jsonl, yaml, md) to standard output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		session, err := st.Get(cmd.Context(), args[0])
		if err != nil {
			if internal.IsNotFound(err) {
				return fmt.Errorf("session not found: %s (use 'session-vault list' to see stored sessions)", args[0])
			}
			return err
		}

		if showFormat != "text" {
			exporter, err := export.NewExporter(showFormat)
			if err != nil {
				return err
			}
			return exporter.Export(session, cmd.OutOrStdout())
		}

		proc, err := newProcessor()
		if err != nil {
			return err
		}
		renderSession(cmd.OutOrStdout(), session, proc.Turns(session.OriginalContent))
		return nil
	},
}

func renderSession(w io.Writer, s *internal.Session, turns []content.Turn) {
	title := s.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintln(w, sessionHeaderStyle.Render(title))

	meta := []string{
		"ID:      " + s.ID,
		"Agent:   " + s.AgentID + " (" + string(s.AgentType) + ")",
	}
	if s.ProjectContext != "" {
		meta = append(meta, "Project: "+s.ProjectContext)
	}
	if len(s.Tags) > 0 {
		meta = append(meta, "Tags:    "+strings.Join(s.Tags, ", "))
	}
	meta = append(meta,
		"Created: "+s.CreatedAt.Local().Format("2006-01-02 15:04"),
		"Updated: "+s.UpdatedAt.Local().Format("2006-01-02 15:04"),
	)
	for _, line := range meta {
		fmt.Fprintln(w, sessionMetaStyle.Render(line))
	}
	fmt.Fprintln(w)

	for _, turn := range turns {
		if turn.Speaker != "" {
			style := assistantMessageStyle
			if strings.EqualFold(turn.Speaker, "user") || strings.EqualFold(turn.Speaker, "human") {
				style = userMessageStyle
			}
			fmt.Fprintln(w, style.Render(turn.Speaker))
		}
		fmt.Fprintln(w, messageContentStyle.Render(turn.Text))
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "text", "Output format (text, json, jsonl, yaml, md)")
}
