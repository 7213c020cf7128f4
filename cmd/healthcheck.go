package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/session-vault/internal/client"
	"github.com/iksnae/session-vault/internal/store"
)

var (
	healthcheckVerbose bool
	healthcheckServer  bool
)

var (
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that the session store is usable",
	Long: `Check the health of session-vault by verifying:
  • The configured database can be opened and initialized
  • Which search path is active (FTS5 index or substring fallback)
  • The search index agrees with the session table
  • Optionally, that a server answers at client.base_url (--server-check)

This command is useful for debugging storage issues, especially in CI/CD environments.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, sectionStyle.Render("Session Vault Health Check"))
		fmt.Fprintln(w)

		fmt.Fprintln(w, infoStyle.Render("Step 1: Opening the database..."))
		if _, err := os.Stat(cfg.Database.Path); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(w, warnStyle.Render("⚠️  Database file does not exist yet; it will be created"))
		}
		st, err := openStore(cmd.Context())
		if err != nil {
			fmt.Fprintln(w, failStyle.Render("❌ Failed to open database:"), err)
			return err
		}
		defer st.Close()
		fmt.Fprintln(w, okStyle.Render("✅ Database ready"))
		if healthcheckVerbose {
			fmt.Fprintf(w, "   Path: %s\n", cfg.Database.Path)
		}
		fmt.Fprintln(w)

		fmt.Fprintln(w, infoStyle.Render("Step 2: Checking search capability..."))
		info, err := st.Inspect(cmd.Context())
		if err != nil {
			fmt.Fprintln(w, failStyle.Render("❌ Failed to inspect database:"), err)
			return err
		}
		if info.Capability == store.CapabilityIndexed {
			fmt.Fprintln(w, okStyle.Render("✅ Full-text index available (ranked search)"))
		} else {
			fmt.Fprintln(w, warnStyle.Render("⚠️  Full-text index unavailable; using substring search"))
		}
		fmt.Fprintln(w)

		fmt.Fprintln(w, infoStyle.Render("Step 3: Counting sessions..."))
		stats, err := st.Stats(cmd.Context())
		if err != nil {
			fmt.Fprintln(w, failStyle.Render("❌ Failed to read sessions:"), err)
			return err
		}
		fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("✅ %d session(s) stored", stats.Total)))
		if healthcheckVerbose {
			for _, t := range info.Tables {
				fmt.Fprintf(w, "   %s: %d row(s)\n", t.Name, t.Rows)
			}
		}
		fmt.Fprintln(w)

		if healthcheckServer {
			fmt.Fprintln(w, infoStyle.Render("Step 4: Contacting server..."))
			if err := checkServer(cmd.Context(), w, cfg.Client.BaseURL); err != nil {
				return err
			}
			fmt.Fprintln(w)
		}

		fmt.Fprintln(w, okStyle.Render("✅ All checks passed"))
		return nil
	},
}

func checkServer(ctx context.Context, w io.Writer, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := client.New(baseURL).Health(ctx)
	if err != nil {
		fmt.Fprintln(w, failStyle.Render("❌ Server unreachable at "+baseURL+":"), err)
		return err
	}
	fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("✅ Server %s is %s (search: %s, up %s)", baseURL, health.Status, health.Capability, health.Uptime)))
	return nil
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckVerbose, "details", false, "Show paths and table counts")
	healthcheckCmd.Flags().BoolVar(&healthcheckServer, "server-check", false, "Also check the server at client.base_url")
	healthcheckCmd.Flags().StringP("server", "s", "", "Server base URL (overrides client.base_url)")
}
