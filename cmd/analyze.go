package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/content"
)

var (
	analyzeFile   string
	analyzeID     string
	analyzeFormat string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract summary, topics, decisions and code from a conversation",
	Long: `Run the content processor over a conversation without storing it. The
text comes from --file, standard input, or a stored session (--id).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if analyzeID != "" {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			session, err := st.Get(cmd.Context(), analyzeID)
			_ = st.Close()
			if err != nil {
				return err
			}
			text = session.OriginalContent
		} else {
			var err error
			if text, err = readInput(cmd, analyzeFile); err != nil {
				return err
			}
		}

		proc, err := newProcessor()
		if err != nil {
			return err
		}
		result := proc.Process(text)

		switch analyzeFormat {
		case "json":
			return printJSON(cmd.OutOrStdout(), result)
		case "yaml":
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(result); err != nil {
				return err
			}
			return enc.Close()
		case "text":
			renderAnalysis(cmd.OutOrStdout(), result)
			return nil
		default:
			return &internal.ValidationError{Field: "format", Message: fmt.Sprintf("unsupported format %q (text, json, yaml)", analyzeFormat)}
		}
	},
}

func renderAnalysis(w io.Writer, r *content.Result) {
	fmt.Fprintln(w, sessionHeaderStyle.Render(r.GeneratedTitle))
	fmt.Fprintf(w, "%d words, %d participant(s), hash %s\n\n", r.WordCount, r.ParticipantCount, idStyle.Render(r.ContentHash[:12]))

	if r.Summary != "" {
		fmt.Fprintln(w, sectionStyle.Render("Summary"))
		fmt.Fprintln(w, messageContentStyle.Render(r.Summary))
	}
	if len(r.KeyTopics) > 0 {
		fmt.Fprintln(w, sectionStyle.Render("Topics"))
		fmt.Fprintln(w, "  "+strings.Join(r.KeyTopics, ", "))
		fmt.Fprintln(w)
	}
	if len(r.Decisions) > 0 {
		fmt.Fprintln(w, sectionStyle.Render("Decisions"))
		for _, d := range r.Decisions {
			fmt.Fprintln(w, "  • "+d)
		}
		fmt.Fprintln(w)
	}
	if len(r.CodeSnippets) > 0 {
		fmt.Fprintln(w, sectionStyle.Render("Code"))
		for _, s := range r.CodeSnippets {
			first := strings.SplitN(strings.TrimSpace(s.Code), "\n", 2)[0]
			fmt.Fprintf(w, "  [%s] %s\n", s.Language, shorten(first, 70))
		}
		fmt.Fprintln(w)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "Read the conversation from a file (default: stdin)")
	analyzeCmd.Flags().StringVar(&analyzeID, "id", "", "Analyze a stored session")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "Output format (text, json, yaml)")
}
