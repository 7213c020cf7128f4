package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
)

var (
	listLimit     int
	listAgentType string
	listAgentID   string
	listJSON      bool
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	projectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	Long: `List the most recently stored sessions, newest first. Use --agent to list
the sessions of one agent instance.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var agentType internal.AgentType
		if listAgentType != "" {
			agentType = internal.AgentType(listAgentType)
			if !agentType.Valid() {
				return &internal.ValidationError{Field: "agent-type", Message: fmt.Sprintf("unknown agent type %q", listAgentType)}
			}
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		var sessions []*internal.Session
		if listAgentID != "" {
			sessions, err = st.ListByAgent(cmd.Context(), listAgentID, listLimit)
		} else {
			sessions, err = st.ListRecent(cmd.Context(), listLimit, agentType)
		}
		if err != nil {
			return err
		}

		if listJSON {
			return printJSON(cmd.OutOrStdout(), sessions)
		}
		if len(sessions) == 0 {
			internal.PrintInfo(cmd.OutOrStdout(), "No sessions stored yet. Add one with 'session-vault add'.")
			return nil
		}
		renderSessionTable(cmd.OutOrStdout(), sessions, time.Now())
		return nil
	},
}

func renderSessionTable(out io.Writer, sessions []*internal.Session, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Agent")+"\t"+titleStyle.Render("Project")+"\t"+titleStyle.Render("Created")+"\t")

	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "Untitled"
		}
		title = shorten(title, 50)

		project := dateStyle.Render("-")
		if s.ProjectContext != "" {
			project = projectStyle.Render(shorten(s.ProjectContext, 25))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			idStyle.Render(s.ID), title, string(s.AgentType), project, dateStyle.Render(relativeTime(s.CreatedAt, now)))
	}
	_ = w.Flush()
}

// relativeTime formats t compactly, with more precision for recent times
func relativeTime(t, now time.Time) string {
	t = t.Local()
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour && t.YearDay() == now.YearDay():
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func shorten(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", internal.DefaultSearchLimit, "Maximum number of sessions")
	listCmd.Flags().StringVar(&listAgentType, "agent-type", "", "Only list sessions of this agent type")
	listCmd.Flags().StringVar(&listAgentID, "agent", "", "Only list sessions of this agent id")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print sessions as JSON")
}
