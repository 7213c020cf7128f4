package cmd

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
)

var (
	searchAgentType string
	searchProject   string
	searchTags      []string
	searchFrom      string
	searchTo        string
	searchLimit     int
	searchOffset    int
	searchJSON      bool
)

var (
	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	rankStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)

var markPattern = regexp.MustCompile(`<mark>(.*?)</mark>`)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search stored sessions",
	Long: `Search titles, conversation text and tags. Every word of the query must
match; filters narrow the result further. Without a query the newest
sessions matching the filters are listed.`,
	Example: `  session-vault search jwt refresh
  session-vault search --agent-type claude --project webapp --tags redis,caching
  session-vault search docker --from 2024-01-01 --to 2024-02-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters := internal.SearchFilters{
			Query:          strings.Join(args, " "),
			AgentType:      internal.AgentType(searchAgentType),
			ProjectContext: searchProject,
			Tags:           searchTags,
			Limit:          searchLimit,
			Offset:         searchOffset,
		}
		if filters.AgentType != "" && !filters.AgentType.Valid() {
			return &internal.ValidationError{Field: "agent-type", Message: fmt.Sprintf("unknown agent type %q", searchAgentType)}
		}
		var err error
		if filters.DateFrom, err = parseDateFlag("from", searchFrom); err != nil {
			return err
		}
		if filters.DateTo, err = parseDateFlag("to", searchTo); err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		results, err := st.Search(cmd.Context(), filters)
		if err != nil {
			return err
		}

		if searchJSON {
			return printJSON(cmd.OutOrStdout(), results)
		}
		renderResults(cmd.OutOrStdout(), results)
		return nil
	},
}

// parseDateFlag accepts RFC3339 timestamps or plain dates
func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, &internal.ValidationError{Field: name, Message: fmt.Sprintf("%q is not a date (use YYYY-MM-DD or RFC3339)", value)}
}

func renderResults(w io.Writer, results []internal.SearchResult) {
	if len(results) == 0 {
		internal.PrintInfo(w, "No matching sessions")
		return
	}

	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		header := fmt.Sprintf("%d. %s", i+1, titleStyle.Render(title))
		if r.Rank != nil {
			header += " " + rankStyle.Render(fmt.Sprintf("(rank %.2f)", *r.Rank))
		}
		fmt.Fprintln(w, header)

		meta := idStyle.Render(r.ID) + "  " + string(r.AgentType)
		if r.ProjectContext != "" {
			meta += "  " + projectStyle.Render(r.ProjectContext)
		}
		if len(r.Tags) > 0 {
			meta += "  [" + strings.Join(r.Tags, ", ") + "]"
		}
		fmt.Fprintln(w, "   "+meta)

		if r.MatchedContent != "" {
			snippet := strings.Join(strings.Fields(r.MatchedContent), " ")
			snippet = markPattern.ReplaceAllStringFunc(snippet, func(m string) string {
				return highlightStyle.Render(markPattern.FindStringSubmatch(m)[1])
			})
			fmt.Fprintln(w, "   "+snippet)
		}
		fmt.Fprintln(w)
	}
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchAgentType, "agent-type", "", "Only sessions of this agent type")
	searchCmd.Flags().StringVarP(&searchProject, "project", "p", "", "Only sessions of this project")
	searchCmd.Flags().StringSliceVar(&searchTags, "tags", nil, "Sessions carrying any of these tags")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "Created at or after this date")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "Created before this date")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", internal.DefaultSearchLimit, "Maximum number of results (at most 100)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "Number of results to skip")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print results as JSON")
}
