package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"discord-code-runner/internal/compiler"
)

type Compilers struct {
	Rust string `yaml:"rust"`
	Java string `yaml:"java"`
	Snow string `yaml:"snow"`
}

type Runtime struct {
	DiscordToken   string        `yaml:"-"`
	APIBase        string        `yaml:"api_base"`
	Variant        string        `yaml:"variant"`
	Channels       []string      `yaml:"channels"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	Workers        int           `yaml:"workers"`
	WorkDir        string        `yaml:"work_dir"`
	ParseLanguage  string        `yaml:"parse_language"`
	Compilers      Compilers     `yaml:"compilers"`
	CompileTimeout time.Duration `yaml:"compile_timeout"`
	MaxOutput      int           `yaml:"max_output"`
	MaxSourceBytes int           `yaml:"max_source_bytes"`
	KeepArtifacts  bool          `yaml:"keep_artifacts"`
	AllowListFile  string        `yaml:"allow_list_file"`
}

func defaults() Runtime {
	return Runtime{
		APIBase:        "https://discord.com/api/v10",
		Variant:        "all",
		PollInterval:   3 * time.Second,
		Workers:        4,
		WorkDir:        "./runner-data",
		ParseLanguage:  "rust",
		Compilers:      Compilers{Rust: "rustc", Java: "javac", Snow: "snowc"},
		CompileTimeout: time.Minute,
		MaxOutput:      12000,
		MaxSourceBytes: 64 << 10,
	}
}

// LoadRuntime reads the YAML file at path (a missing file means defaults)
// and applies environment overrides. It does not check the token; see
// ValidateServe.
func LoadRuntime(path string) (Runtime, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Runtime{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Runtime{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.DiscordToken = os.Getenv("DISCORD_TOKEN")
	cfg.WorkDir = getenvDefault("RUNNER_WORK_DIR", cfg.WorkDir)
	cfg.APIBase = getenvDefault("RUNNER_API_BASE", cfg.APIBase)
	if sec := readIntEnv("RUNNER_POLL_INTERVAL_SEC", 0); sec > 0 {
		cfg.PollInterval = time.Duration(sec) * time.Second
	}
	if sec := readIntEnv("RUNNER_COMPILE_TIMEOUT_SEC", 0); sec > 0 {
		cfg.CompileTimeout = time.Duration(sec) * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		return Runtime{}, errors.New("poll_interval must be positive")
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return Runtime{}, fmt.Errorf("create workdir: %w", err)
	}
	if absWD, err := filepath.Abs(cfg.WorkDir); err == nil {
		cfg.WorkDir = absWD
	}
	// Compilers run inside per-request directories, so relative paths are
	// pinned to the directory the runner was started from.
	for _, bin := range []*string{&cfg.Compilers.Rust, &cfg.Compilers.Java, &cfg.Compilers.Snow} {
		abs, err := compiler.ResolveBin(*bin)
		if err != nil {
			return Runtime{}, fmt.Errorf("resolve compiler %s: %w", *bin, err)
		}
		*bin = abs
	}
	return cfg, nil
}

// ValidateServe checks the settings the polling runner cannot start without.
func (c Runtime) ValidateServe() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN must be set")
	}
	if len(c.Channels) == 0 {
		return errors.New("at least one channel id must be configured")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readIntEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
