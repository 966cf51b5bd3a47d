package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/profilebus/internal/protocol"
)

// testRoot returns root options that ignore any .env file in the working
// directory.
func testRoot(format string) *RootOptions {
	return &RootOptions{Format: format}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "profilebus", cmd.Use)
	assert.Contains(t, cmd.Long, "state store")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"ingest", "check", "eject", "route", "test", "audit"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)
}

func TestIngestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	ingestCmd, _, err := cmd.Find([]string{"ingest"})
	require.NoError(t, err)

	for _, name := range []string{"db", "metrics-addr", "policy", "start-height"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "-1", ingestCmd.Flags().Lookup("start-height").DefValue)
}

func TestAuditCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	auditCmd, _, err := cmd.Find([]string{"audit"})
	require.NoError(t, err)

	for _, name := range []string{"db", "run-id", "txid", "kind", "status", "limit"} {
		assert.NotNil(t, auditCmd.Flags().Lookup(name), name)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "route"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootOptions_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profilebus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("protocol:\n  namespace: 1TestNamespace\n"), 0644))

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--env-file", "", "--config", path, "route"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "1TestNamespace")
	assert.NotContains(t, buf.String(), protocol.DefaultNamespace)
}

func TestRootOptions_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PROFILEBUS_NAMESPACE=1FromDotEnv\n"), 0644))
	// godotenv sets the variable for the whole process; register cleanup.
	t.Setenv("PROFILEBUS_NAMESPACE", "")
	require.NoError(t, os.Unsetenv("PROFILEBUS_NAMESPACE"))

	opts := &RootOptions{Format: "text", EnvFile: envPath}
	cfg, err := opts.Config()
	require.NoError(t, err)
	assert.Equal(t, "1FromDotEnv", cfg.Protocol.Namespace)

	// Loaded once.
	again, err := opts.Config()
	require.NoError(t, err)
	assert.Equal(t, cfg.Protocol.Namespace, again.Protocol.Namespace)
}

func TestRootOptions_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profilebus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy: explode\n"), 0644))

	opts := &RootOptions{Format: "text", ConfigPath: path}
	_, err := opts.Config()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "policy")
}
