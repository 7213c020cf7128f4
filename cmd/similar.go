package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
)

var (
	similarFile  string
	similarID    string
	similarLimit int
	similarJSON  bool
)

var similarCmd = &cobra.Command{
	Use:   "similar [text...]",
	Short: "Find sessions related to a piece of text",
	Long: `Find stored sessions sharing the most frequent significant words of the
given text. The text comes from the arguments, --file, standard input, or
the content of a stored session (--id), which is then left out of the results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		var text string
		switch {
		case similarID != "":
			session, err := st.Get(cmd.Context(), similarID)
			if err != nil {
				return err
			}
			text = session.OriginalContent
		case len(args) > 0:
			text = strings.Join(args, " ")
		default:
			if text, err = readInput(cmd, similarFile); err != nil {
				return err
			}
		}
		if strings.TrimSpace(text) == "" {
			return &internal.ValidationError{Field: "text", Message: "nothing to compare"}
		}

		want := similarLimit
		if want <= 0 {
			want = internal.DefaultSimilarLimit
		}
		limit := want
		if similarID != "" {
			// the session itself always matches
			limit++
		}
		results, err := st.FindSimilar(cmd.Context(), text, limit)
		if err != nil {
			return err
		}
		if similarID != "" {
			results = excludeSession(results, similarID, want)
		}

		if similarJSON {
			return printJSON(cmd.OutOrStdout(), results)
		}
		renderResults(cmd.OutOrStdout(), results)
		return nil
	},
}

func excludeSession(results []internal.SearchResult, id string, limit int) []internal.SearchResult {
	out := make([]internal.SearchResult, 0, len(results))
	for _, r := range results {
		if r.ID != id {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func init() {
	rootCmd.AddCommand(similarCmd)
	similarCmd.Flags().StringVarP(&similarFile, "file", "f", "", "Read the text from a file")
	similarCmd.Flags().StringVar(&similarID, "id", "", "Use the content of a stored session")
	similarCmd.Flags().IntVarP(&similarLimit, "limit", "n", internal.DefaultSimilarLimit, "Maximum number of sessions")
	similarCmd.Flags().BoolVar(&similarJSON, "json", false, "Print results as JSON")
}
