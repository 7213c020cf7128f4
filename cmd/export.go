package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/export"
	"github.com/iksnae/session-vault/internal/store"
)

var (
	exportFormat    string
	exportOutputDir string
	exportID        string
	exportQuery     string
	exportAgentType string
	exportProject   string
	exportTags      []string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions to files",
	Long: `Export stored sessions to jsonl, md, yaml or json, one file per session.

Export everything, a filtered subset, or a single session by id.`,
	Example: `  session-vault export --format md --out ./notes
  session-vault export --project webapp --tags auth
  session-vault export --id 0190c7a2-...`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}
		filters := internal.SearchFilters{
			Query:          exportQuery,
			AgentType:      internal.AgentType(exportAgentType),
			ProjectContext: exportProject,
			Tags:           exportTags,
		}
		if filters.AgentType != "" && !filters.AgentType.Valid() {
			return &internal.ValidationError{Field: "agent-type", Message: fmt.Sprintf("unknown agent type %q", exportAgentType)}
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		var sessions []*internal.Session
		written := 0
		err = internal.ShowProgressWithSteps(ctx, []internal.ProgressStep{
			{
				Message: "Collecting sessions",
				Fn: func() error {
					var err error
					sessions, err = selectSessions(ctx, st, filters)
					return err
				},
			},
			{
				Message: "Writing files to " + exportOutputDir,
				Fn: func() error {
					if err := os.MkdirAll(exportOutputDir, 0755); err != nil {
						return fmt.Errorf("failed to create output directory: %w", err)
					}
					for _, session := range sessions {
						path := filepath.Join(exportOutputDir, fmt.Sprintf("session_%s.%s", session.ID, exporter.Extension()))
						if err := writeExport(exporter, session, path); err != nil {
							internal.LogError("Failed to export session %s: %v", session.ID, err)
							continue
						}
						written++
					}
					return nil
				},
			},
		})
		if err != nil {
			return err
		}

		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Export complete: %d session(s) exported to %s", written, exportOutputDir))
		if written < len(sessions) {
			return fmt.Errorf("%d session(s) could not be exported", len(sessions)-written)
		}
		return nil
	},
}

// selectSessions returns the session named by --id, or every session
// matching filters
func selectSessions(ctx context.Context, st *store.Store, filters internal.SearchFilters) ([]*internal.Session, error) {
	if exportID == "" {
		return collectSessions(ctx, st, filters)
	}
	session, err := st.Get(ctx, exportID)
	if err != nil {
		if internal.IsNotFound(err) {
			return nil, fmt.Errorf("session not found: %s (use 'session-vault list' to see stored sessions)", exportID)
		}
		return nil, err
	}
	return []*internal.Session{session}, nil
}

// collectSessions pages through every search result
func collectSessions(ctx context.Context, st *store.Store, filters internal.SearchFilters) ([]*internal.Session, error) {
	filters.Limit = internal.MaxSearchLimit
	var sessions []*internal.Session
	for {
		page, err := st.Search(ctx, filters)
		if err != nil {
			return nil, err
		}
		for i := range page {
			s := page[i].Session
			sessions = append(sessions, &s)
		}
		if len(page) < filters.Limit {
			return sessions, nil
		}
		filters.Offset += len(page)
	}
}

func writeExport(exporter export.Exporter, session *internal.Session, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	if err := exporter.Export(session, file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "jsonl", "Export format ("+strings.Join(export.Formats, ", ")+")")
	exportCmd.Flags().StringVarP(&exportOutputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().StringVar(&exportID, "id", "", "Export a specific session by ID")
	exportCmd.Flags().StringVarP(&exportQuery, "query", "q", "", "Only sessions matching this search")
	exportCmd.Flags().StringVar(&exportAgentType, "agent-type", "", "Only sessions of this agent type")
	exportCmd.Flags().StringVarP(&exportProject, "project", "p", "", "Only sessions of this project")
	exportCmd.Flags().StringSliceVar(&exportTags, "tags", nil, "Only sessions carrying any of these tags")
}
