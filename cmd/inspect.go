package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/store"
)

var inspectFormat string

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect the session database schema",
	Long: `Inspect the tables of the session database.

This command shows:
  • Each table with its row count and columns
  • Whether the full-text index is active and in sync`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		info, err := st.Inspect(cmd.Context())
		if err != nil {
			return err
		}

		switch inspectFormat {
		case "json":
			return printJSON(cmd.OutOrStdout(), info)
		case "text":
			renderInspection(cmd.OutOrStdout(), cfg.Database.Path, info)
			return nil
		default:
			return &internal.ValidationError{Field: "format", Message: fmt.Sprintf("unsupported format %q (text, json)", inspectFormat)}
		}
	},
}

func renderInspection(w io.Writer, path string, info *store.Inspection) {
	fmt.Fprintf(w, "📋 Database: %s\n", path)
	fmt.Fprintf(w, "🔎 Search: %s (index in sync: %t)\n", info.Capability, info.IndexSynced)
	fmt.Fprintf(w, "📊 Found %d table(s)\n\n", len(info.Tables))

	for _, table := range info.Tables {
		fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(w, "📦 Table: %s\n", table.Name)
		fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(w, "📊 Rows: %d\n\n", table.Rows)

		fmt.Fprintf(w, "📐 Schema:\n")
		for _, col := range table.Columns {
			pk := ""
			if col.PrimaryKey {
				pk = " [PRIMARY KEY]"
			}
			notNull := ""
			if col.NotNull {
				notNull = " NOT NULL"
			}
			fmt.Fprintf(w, "  • %s: %s%s%s\n", col.Name, col.Type, notNull, pk)
		}
		fmt.Fprintln(w)
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format (text, json)")
}
