package config

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRuntimeFromYAML(t *testing.T) {
	d := t.TempDir()
	p := filepath.Join(d, "runner.yaml")
	yml := "variant: compiler\nchannels:\n  - \"1001\"\npoll_interval: 5s\ncompile_timeout: 20s\ncompilers:\n  snow: /opt/snow/bin/snowc\n"
	require.NoError(t, os.WriteFile(p, []byte(yml), 0o644))
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("RUNNER_WORK_DIR", filepath.Join(d, "work"))

	cfg, err := LoadRuntime(p)
	require.NoError(t, err)
	assert.Equal(t, "compiler", cfg.Variant)
	assert.Equal(t, []string{"1001"}, cfg.Channels)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 20*time.Second, cfg.CompileTimeout)
	assert.Equal(t, "/opt/snow/bin/snowc", cfg.Compilers.Snow)
	assert.Equal(t, "rustc", cfg.Compilers.Rust)
	assert.Equal(t, "tok", cfg.DiscordToken)
	assert.True(t, filepath.IsAbs(cfg.WorkDir))
	assert.DirExists(t, cfg.WorkDir)
	assert.NoError(t, cfg.ValidateServe())
}

func TestLoadRuntimeMissingFileUsesDefaults(t *testing.T) {
	d := t.TempDir()
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("RUNNER_WORK_DIR", filepath.Join(d, "work"))
	t.Setenv("RUNNER_POLL_INTERVAL_SEC", "9")

	cfg, err := LoadRuntime(filepath.Join(d, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "all", cfg.Variant)
	assert.Equal(t, 9*time.Second, cfg.PollInterval)
	assert.EqualError(t, cfg.ValidateServe(), "DISCORD_TOKEN must be set")

	cfg.DiscordToken = "tok"
	assert.Error(t, cfg.ValidateServe())
}

func TestLoadRuntimeRejectsBadYAML(t *testing.T) {
	d := t.TempDir()
	p := filepath.Join(d, "runner.yaml")
	require.NoError(t, os.WriteFile(p, []byte("poll_interval: soon\n"), 0o644))
	t.Setenv("RUNNER_WORK_DIR", filepath.Join(d, "work"))

	_, err := LoadRuntime(p)
	assert.Error(t, err)
}

func TestAllowList(t *testing.T) {
	empty, err := LoadAllowList("")
	require.NoError(t, err)
	assert.True(t, empty.Allowed("anyone"))

	p := filepath.Join(t.TempDir(), "allowlist.yaml")
	require.NoError(t, os.WriteFile(p, []byte("user_ids:\n  - \"42\"\n  - \" \"\n"), 0o644))
	allow, err := LoadAllowList(p)
	require.NoError(t, err)
	assert.Equal(t, 1, allow.Len())
	assert.True(t, allow.Allowed("42"))
	assert.False(t, allow.Allowed("7"))
}

func TestAllowListRequiresUserIDs(t *testing.T) {
	p := filepath.Join(t.TempDir(), "allowlist.yaml")
	require.NoError(t, os.WriteFile(p, []byte("open_ids:\n  - a\n"), 0o644))
	_, err := LoadAllowList(p)
	assert.Error(t, err)
}

func TestAllowListWatchReloads(t *testing.T) {
	p := filepath.Join(t.TempDir(), "allowlist.yaml")
	require.NoError(t, os.WriteFile(p, []byte("user_ids: [\"1\"]\n"), 0o644))
	allow, err := LoadAllowList(p)
	require.NoError(t, err)
	allow.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, allow.Watch(ctx, nil))

	require.NoError(t, os.WriteFile(p, []byte("user_ids: [\"1\", \"2\"]\n"), 0o644))
	require.Eventually(t, func() bool { return allow.Allowed("2") }, 3*time.Second, 20*time.Millisecond)
}

func TestLoadRuntimePinsRelativeCompilerPaths(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX absolute paths")
	}
	d := t.TempDir()
	p := filepath.Join(d, "runner.yaml")
	require.NoError(t, os.WriteFile(p, []byte("compilers:\n  snow: ./bin/snowc\n  java: /opt/jdk/bin/javac\n"), 0o644))
	t.Setenv("RUNNER_WORK_DIR", filepath.Join(d, "work"))
	t.Chdir(d)

	cfg, err := LoadRuntime(p)
	require.NoError(t, err)
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "bin", "snowc"), cfg.Compilers.Snow)
	assert.Equal(t, "/opt/jdk/bin/javac", cfg.Compilers.Java)
	assert.Equal(t, "rustc", cfg.Compilers.Rust)
}
