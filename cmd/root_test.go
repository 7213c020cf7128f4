package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/config"
)

// resetFlags restores every flag of c and its children to its default so
// consecutive Execute calls do not leak state
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setupHome points the data directory at a fresh temp dir and returns the
// default database path inside it
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.HomeEnv, home)
	return filepath.Join(home, "sessions.db")
}

// runCmd executes the root command and returns what it wrote to stdout
func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	setupHome(t)

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{name: "version flag", args: []string{"--version"}, want: "dev"},
		{name: "help flag", args: []string{"--help"}, want: "session-vault"},
		{name: "unknown command", args: []string{"nonexistent-command"}, wantErr: true},
		{name: "unknown flag", args: []string{"list", "--nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, "", tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestLoadConfig_FlagOverridesDefault(t *testing.T) {
	setupHome(t)
	custom := filepath.Join(t.TempDir(), "custom.db")

	_, err := runCmd(t, "", "stats", "--db", custom)
	require.NoError(t, err)
	assert.Equal(t, custom, cfg.Database.Path)
	assert.FileExists(t, custom)
}

func TestLoadConfig_HomeDefault(t *testing.T) {
	def := setupHome(t)

	_, err := runCmd(t, "", "stats")
	require.NoError(t, err)
	assert.Equal(t, def, cfg.Database.Path)
}

func TestLoadConfig_File(t *testing.T) {
	setupHome(t)
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "from-file.db")
	cfgPath := filepath.Join(dir, "vault.yaml")
	writeFile(t, cfgPath, "database:\n  path: "+dbFile+"\nlogging:\n  level: error\n")

	_, err := runCmd(t, "", "--config", cfgPath, "stats")
	require.NoError(t, err)
	assert.Equal(t, dbFile, cfg.Database.Path)
	assert.Equal(t, "error", cfg.Logging.Level)

	_, err = runCmd(t, "", "--config", filepath.Join(dir, "missing.yaml"), "stats")
	assert.Error(t, err, "an explicit config file must exist")
}

func TestLoadConfig_EnvAndValidation(t *testing.T) {
	setupHome(t)
	t.Setenv("SESSION_VAULT_LOGGING_FORMAT", "xml")

	_, err := runCmd(t, "", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")

	_, err = runCmd(t, "", "stats", "--log-format", "json")
	assert.NoError(t, err, "flags win over the environment")
}

func TestLoadConfig_LogLevel(t *testing.T) {
	setupHome(t)
	enabled := func(l zapcore.Level) bool { return internal.Logger().Core().Enabled(l) }

	_, err := runCmd(t, "", "stats", "--log-level", "error")
	require.NoError(t, err)
	assert.False(t, enabled(zapcore.WarnLevel))
	assert.True(t, enabled(zapcore.ErrorLevel))

	_, err = runCmd(t, "", "stats", "--log-level", "error", "--verbose")
	require.NoError(t, err)
	assert.True(t, enabled(zapcore.DebugLevel), "--verbose wins over the configured level")

	_, err = runCmd(t, "", "stats")
	require.NoError(t, err)
	assert.False(t, enabled(zapcore.DebugLevel))
}

func TestConfigCommand(t *testing.T) {
	setupHome(t)
	out, err := runCmd(t, "", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "database:")
	assert.Contains(t, out, "rate_limit:")
}
