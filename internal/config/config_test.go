package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestEnv isolates HOME, cwd and executable lookups for Load.
func setupTestEnv(t *testing.T) (home, wd, installRoot string) {
	t.Helper()
	home = t.TempDir()
	wd = t.TempDir()
	installRoot = t.TempDir()

	origGetwd, origHome, origExe := getwd, userHomeDir, executable
	getwd = func() (string, error) { return wd, nil }
	userHomeDir = func() (string, error) { return home, nil }
	executable = func() (string, error) { return filepath.Join(installRoot, "bin", "apex-spec"), nil }
	t.Cleanup(func() {
		getwd, userHomeDir, executable = origGetwd, origHome, origExe
	})

	require.NoError(t, os.MkdirAll(filepath.Join(installRoot, "bin"), 0o755))
	return home, wd, installRoot
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	home, wd, root := setupTestEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, wd, cfg.ProjectDir)
	assert.Equal(t, filepath.Join(root, "commands"), cfg.CommandsDir)
	assert.Equal(t, filepath.Join(root, "scripts"), cfg.ScriptsDir)
	assert.Equal(t, "bash", cfg.Interpreter)
	assert.Equal(t, 30*time.Second, cfg.ValidatorTimeout)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, filepath.Join(home, ".apex-spec"), cfg.Journal.DataDir)
	assert.Equal(t, 2000, cfg.Journal.MaxDetailLength)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_DefaultFileIsPickedUp(t *testing.T) {
	home, _, _ := setupTestEnv(t)
	dir := filepath.Join(home, ".config", "apex-spec")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	writeConfig(t, dir, "commands_dir: /srv/apex/commands\nlog:\n  level: debug\n")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/srv/apex/commands", cfg.CommandsDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format, "unset keys keep their defaults")
}

func TestLoad_ExplicitFile(t *testing.T) {
	setupTestEnv(t)
	path := writeConfig(t, t.TempDir(), `
project_dir: /work/project
scripts_dir: /opt/apex/scripts
validator_timeout: 5s
journal:
  enabled: false
metrics:
  addr: 127.0.0.1:9464
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/work/project", cfg.ProjectDir)
	assert.Equal(t, "/opt/apex/scripts", cfg.ScriptsDir)
	assert.Equal(t, 5*time.Second, cfg.ValidatorTimeout)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	setupTestEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	setupTestEnv(t)
	path := writeConfig(t, t.TempDir(), "project_dir: /from/file\nlog:\n  level: debug\n")
	t.Setenv("APEX_PROJECT_DIR", "/from/env")
	t.Setenv("APEX_LOG_LEVEL", "warn")
	t.Setenv("APEX_JOURNAL_DATA_DIR", "/var/lib/apex")
	t.Setenv("APEX_JOURNAL_ENABLED", "false")
	t.Setenv("APEX_VALIDATOR_TIMEOUT", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.ProjectDir)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/var/lib/apex", cfg.Journal.DataDir)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, 45*time.Second, cfg.ValidatorTimeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	setupTestEnv(t)

	path := writeConfig(t, t.TempDir(), "log:\n  format: xml\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid log format")

	path = writeConfig(t, t.TempDir(), "validator_timeout: 0s\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "validator_timeout")

	path = writeConfig(t, t.TempDir(), "interpreter: \"\"\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "interpreter")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"APEX_PROJECT_DIR":       "project_dir",
		"APEX_VALIDATOR_TIMEOUT": "validator_timeout",
		"APEX_JOURNAL_DATA_DIR":  "journal.data_dir",
		"APEX_LOG_FORMAT":        "log.format",
		"APEX_METRICS_ADDR":      "metrics.addr",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestInstallRoot(t *testing.T) {
	orig := executable
	t.Cleanup(func() { executable = orig })

	executable = func() (string, error) { return "/nonexistent/apex/bin/apex-spec", nil }
	root, err := InstallRoot()
	require.NoError(t, err)
	assert.Equal(t, "/nonexistent/apex", root)

	executable = func() (string, error) { return "/nonexistent/apex/apex-spec", nil }
	root, err = InstallRoot()
	require.NoError(t, err)
	assert.Equal(t, "/nonexistent/apex", root)
}
