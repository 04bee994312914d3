// Package config assembles a run configuration from environment defaults and command-line flags.
package config

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// DefaultOutputDir is used when neither a flag nor DISTCHECK_OUTPUT_DIR sets one
const DefaultOutputDir = "distcheck-out"

// NetworkVariables are the host proxy and CA settings an artifact is expected to honor
var NetworkVariables = []string{
	"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY",
	"http_proxy", "https_proxy", "no_proxy",
	"SSL_CERT_FILE", "SSL_CERT_DIR",
}

// Defaults holds DISTCHECK_* environment settings; flags override them
type Defaults struct {
	OutputDir string        `env:"DISTCHECK_OUTPUT_DIR,default=distcheck-out"`
	Timeout   time.Duration `env:"DISTCHECK_TIMEOUT"`
	Parallel  int           `env:"DISTCHECK_PARALLEL"`
	Layout    string        `env:"DISTCHECK_LAYOUT"`
	Keyring   string        `env:"DISTCHECK_KEYRING"`
	History   string        `env:"DISTCHECK_HISTORY"`
	Verbose   bool          `env:"DISTCHECK_VERBOSE,default=false"`
}

// LoadDefaults reads DISTCHECK_* variables from the process environment
func LoadDefaults(ctx context.Context) (Defaults, error) {
	return LoadDefaultsFrom(ctx, envconfig.OsLookuper())
}

// LoadDefaultsFrom reads DISTCHECK_* variables through lookuper
func LoadDefaultsFrom(ctx context.Context, lookuper envconfig.Lookuper) (Defaults, error) {
	var d Defaults
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &d, Lookuper: lookuper}); err != nil {
		return Defaults{}, fmt.Errorf("invalid environment configuration: %w", err)
	}
	return d, nil
}

// HostNetworkEnv returns the network variables set in the harness's own environment
func HostNetworkEnv(lookup func(string) (string, bool)) map[string]string {
	env := make(map[string]string)
	for _, name := range NetworkVariables {
		if v, ok := lookup(name); ok && v != "" {
			env[name] = v
		}
	}
	return env
}

// LoadEnvFile parses a dotenv file of extra variables for the artifact's processes
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return vars, nil
}

// Flags are the raw command-line values; empty strings and zero values defer to Defaults
type Flags struct {
	Tier         string
	Architecture string
	Categories   []string
	Timeout      time.Duration
	TimeoutSet   bool
	OutputDir    string
	Parallel     int
	Verbose      bool
	Layout       string
	Keyring      string
	EnvFile      string
	ExtractTo    string
	History      string
	Bundle       bool
}

// Build validates flags against defaults and produces the immutable run configuration
func Build(artifactPath string, flags Flags, defaults Defaults) (entities.RunConfiguration, error) {
	cfg := entities.RunConfiguration{
		ArtifactPath: artifactPath,
		OutputDir:    firstNonEmpty(flags.OutputDir, defaults.OutputDir, DefaultOutputDir),
		Verbose:      flags.Verbose || defaults.Verbose,
		LayoutFile:   firstNonEmpty(flags.Layout, defaults.Layout),
		KeyringFile:  firstNonEmpty(flags.Keyring, defaults.Keyring),
		ExtractTo:    flags.ExtractTo,
		HistoryFile:  firstNonEmpty(flags.History, defaults.History),
		Bundle:       flags.Bundle,
		HostEnv:      HostNetworkEnv(os.LookupEnv),
	}

	if artifactPath == "" {
		return cfg, fmt.Errorf("artifact path is required")
	}

	if flags.Tier != "" {
		tier, err := entities.ParseTier(flags.Tier)
		if err != nil {
			return cfg, err
		}
		cfg.Tier = tier
	}
	if flags.Architecture != "" {
		arch, err := entities.ParseArchitecture(flags.Architecture)
		if err != nil {
			return cfg, err
		}
		cfg.Architecture = arch
	}

	seen := make(map[entities.Category]bool)
	for _, raw := range flags.Categories {
		category, err := entities.ParseCategory(raw)
		if err != nil {
			return cfg, err
		}
		if !seen[category] {
			seen[category] = true
			cfg.Categories = append(cfg.Categories, category)
		}
	}

	cfg.Timeout = defaults.Timeout
	if flags.TimeoutSet {
		cfg.Timeout = flags.Timeout
	}
	if cfg.Timeout < 0 {
		return cfg, fmt.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}

	cfg.Parallel = defaults.Parallel
	if flags.Parallel != 0 {
		cfg.Parallel = flags.Parallel
	}
	if cfg.Parallel < 0 {
		return cfg, fmt.Errorf("parallel must not be negative, got %d", cfg.Parallel)
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = runtime.NumCPU()
	}

	extra, err := LoadEnvFile(flags.EnvFile)
	if err != nil {
		return cfg, err
	}
	cfg.ExtraEnv = extra

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
