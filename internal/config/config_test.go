package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, ".local", "share"))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 7440, cfg.Port)
	assert.Equal(t, "codex", cfg.DefaultAgent)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoad_ProjectFileWithComments(t *testing.T) {
	home := isolate(t)
	project := filepath.Join(home, "project")
	require.NoError(t, os.MkdirAll(project, 0755))

	content := `{
	// bind somewhere else for this project
	"port": 9001,
	"defaultAgent": "qwen",
}`
	require.NoError(t, os.WriteFile(filepath.Join(project, "lareview.jsonc"), []byte(content), 0644))

	cfg, err := Load(project)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, "qwen", cfg.DefaultAgent)
	assert.Equal(t, "127.0.0.1", cfg.Host, "unset fields keep defaults")
}

func TestLoad_ProjectOverridesGlobal(t *testing.T) {
	home := isolate(t)

	globalDir := filepath.Join(home, ".config", "lareview")
	require.NoError(t, os.MkdirAll(globalDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "lareview.json"),
		[]byte(`{"port": 8000, "logLevel": "debug"}`), 0644))

	project := filepath.Join(home, "project")
	require.NoError(t, os.MkdirAll(project, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "lareview.json"),
		[]byte(`{"port": 8001}`), 0644))

	cfg, err := Load(project)
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port, "project file wins")
	assert.Equal(t, "debug", cfg.LogLevel, "global-only fields survive")
}

func TestLoad_EnvInterpolation(t *testing.T) {
	home := isolate(t)
	t.Setenv("REVIEW_AGENT_CHOICE", "mistral")

	project := filepath.Join(home, "project")
	require.NoError(t, os.MkdirAll(project, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "lareview.json"),
		[]byte(`{"defaultAgent": "{env:REVIEW_AGENT_CHOICE}"}`), 0644))

	cfg, err := Load(project)
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.DefaultAgent)
}

func TestLoad_EnvOverridesBeatFiles(t *testing.T) {
	home := isolate(t)
	t.Setenv("LAREVIEW_PORT", "9999")
	t.Setenv("LAREVIEW_LOG_LEVEL", "warn")

	project := filepath.Join(home, "project")
	require.NoError(t, os.MkdirAll(project, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "lareview.json"),
		[]byte(`{"port": 8001, "logLevel": "debug"}`), 0644))

	cfg, err := Load(project)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_DotEnvFile(t *testing.T) {
	home := isolate(t)
	project := filepath.Join(home, "project")
	require.NoError(t, os.MkdirAll(project, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(project, ".env"),
		[]byte("LAREVIEW_AGENT=qwen\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("LAREVIEW_AGENT") })

	cfg, err := Load(project)
	require.NoError(t, err)
	assert.Equal(t, "qwen", cfg.DefaultAgent)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "elsewhere.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dataDir": "/srv/lareview"}`), 0644))
	t.Setenv("LAREVIEW_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/lareview", cfg.DataDir)
}

func TestSaveRoundTrip(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "nested", "lareview.json")

	cfg := Default()
	cfg.Port = 7001
	require.NoError(t, Save(cfg, path))

	t.Setenv("LAREVIEW_CONFIG", path)
	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7001, loaded.Port)
}

func TestPaths(t *testing.T) {
	home := isolate(t)

	p := GetPaths()
	assert.Equal(t, filepath.Join(home, ".config", "lareview"), p.Config)
	assert.Equal(t, filepath.Join(home, ".local", "share", "lareview", "storage"), p.StoragePath())
	assert.Equal(t, filepath.Join(p.Config, "agents.yaml"), p.AgentsPath())

	require.NoError(t, p.EnsurePaths())
	for _, dir := range []string{p.Data, p.Config, p.Cache} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
