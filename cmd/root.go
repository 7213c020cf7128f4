package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/config"
	"github.com/iksnae/session-vault/internal/content"
	"github.com/iksnae/session-vault/internal/store"
)

var (
	cfgFile string
	verbose bool
	version string = "dev"
	commit  string = "unknown"
	date    string = "unknown"

	// cfg is loaded before every command runs
	cfg *config.Config
)

// flagBindings maps config keys to the flags that override them. Flags a
// command does not define are skipped.
var flagBindings = map[string]string{
	"database.path":   "db",
	"logging.level":   "log-level",
	"logging.format":  "log-format",
	"server.host":     "host",
	"server.port":     "port",
	"client.base_url": "server",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "session-vault",
	Short: "Store and search AI chat sessions",
	Long: `A local store for AI assistant conversations with full-text search.

Sessions are kept in a single SQLite file. When the SQLite build supports
FTS5 searches are ranked and highlighted; otherwise a substring search is
used with the same filters.

Quick Start:
  session-vault add --agent-type claude --file chat.txt   # Store a conversation
  session-vault search postgres --project webapp          # Search it
  session-vault serve                                     # Expose the HTTP API
  session-vault mcp                                       # Expose MCP tools over stdio`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		internal.PrintError(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $SESSION_VAULT_HOME/session-vault.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Database file (overrides database.path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (console, json)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadConfig builds the configuration from defaults, file, environment and
// flags, then configures logging
func loadConfig(cmd *cobra.Command) error {
	v := config.New()
	for key, name := range flagBindings {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}

	internal.ConfigureLogger(internal.ParseLogLevel(c.Logging.Level), c.Logging.Format, cmd.ErrOrStderr())
	if verbose {
		internal.SetVerbose(true)
	}
	internal.LogDebug("using database %s", c.Database.Path)

	cfg = c
	return nil
}

// newProcessor builds the content processor, applying the configured rules file
func newProcessor() (*content.Extractor, error) {
	if cfg.Content.RulesFile == "" {
		return content.Default(), nil
	}
	rules, err := content.LoadRules(cfg.Content.RulesFile)
	if err != nil {
		return nil, err
	}
	return content.NewExtractor(rules)
}

// openStore opens the configured session database
func openStore(ctx context.Context) (*store.Store, error) {
	proc, err := newProcessor()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, store.Options{
		Path:          cfg.Database.Path,
		ForceFallback: cfg.Database.ForceFallback,
		Logger:        internal.Logger(),
		Terms:         proc,
	})
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
