package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/store"
)

var statsJSON bool

var (
	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
)

// statsOutput is the JSON shape of the stats command
type statsOutput struct {
	*internal.Stats
	Capability store.Capability `json:"capability"`
	Database   string           `json:"database"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Stats(cmd.Context())
		if err != nil {
			return err
		}

		out := statsOutput{Stats: stats, Capability: st.Capability(), Database: cfg.Database.Path}
		if statsJSON {
			return printJSON(cmd.OutOrStdout(), out)
		}
		renderStats(cmd.OutOrStdout(), out)
		return nil
	},
}

func renderStats(w io.Writer, out statsOutput) {
	fmt.Fprintln(w, sectionStyle.Render("Sessions"))
	fmt.Fprintf(w, "  Total:   %s\n", countStyle.Render(fmt.Sprint(out.Total)))
	fmt.Fprintf(w, "  Search:  %s\n", out.Capability)
	fmt.Fprintf(w, "  Storage: %s\n\n", out.Database)

	renderCounts(w, "By agent type", out.ByAgentType)
	renderCounts(w, "By project", out.ByProject)
}

// renderCounts prints a count table, largest first then by name
func renderCounts(w io.Writer, heading string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Fprintln(w, sectionStyle.Render(heading))
	for _, k := range keys {
		fmt.Fprintf(w, "  %-20s %s\n", k, countStyle.Render(fmt.Sprint(counts[k])))
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print statistics as JSON")
}
