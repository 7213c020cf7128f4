package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/client"
	"github.com/iksnae/session-vault/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools over stdio",
	Long: `Run a Model Context Protocol server on standard input and output. Its
tools (save_session, search_sessions, get_session, find_similar, list_recent,
session_stats, delete_session) forward to the HTTP API at client.base_url,
so 'session-vault serve' must be running.

Logs go to standard error; standard output carries the protocol.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend := client.New(cfg.Client.BaseURL)
		internal.LogInfo("forwarding MCP tools to %s", backend.BaseURL())
		return mcpserver.New(backend, version, internal.Logger()).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("server", "s", "", "Server base URL (overrides client.base_url)")
}
