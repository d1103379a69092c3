// Package config loads erdschema's command-line configuration.
//
// Values are layered, lowest priority first: built-in defaults, the YAML config
// file (.erdschema.yaml or --config), a .env file, ERDSCHEMA_* environment
// variables, and finally flags that were set explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// DefaultConfigFile is looked up in the working directory when --config is not given.
	DefaultConfigFile = ".erdschema.yaml"

	// DefaultEnvFile is loaded into the process environment when present.
	DefaultEnvFile = ".env"

	// EnvPrefix prefixes environment variables: ERDSCHEMA_OUTPUT_DIR sets output_dir.
	EnvPrefix = "ERDSCHEMA_"

	DefaultOutput   = "schema.md"
	DefaultNewLine  = `\n`
	DefaultParallel = 4
)

// Output formats.
const (
	FormatDiagram = "diagram" // Mermaid erDiagram, raw or fenced by output extension
	FormatDocs    = "docs"    // Markdown documentation with comments
	FormatText    = "text"    // plain text tables
	FormatYAML    = "yaml"    // canonical model dump
	FormatMulti   = "multi"   // directory with an overview and one file per table
)

// Config holds all CLI configuration options.
type Config struct {
	Output    string   `koanf:"output"`
	NewLine   string   `koanf:"newline"`
	Format    string   `koanf:"format"`
	Schema    string   `koanf:"schema"`
	Tables    []string `koanf:"tables"`
	Exclude   []string `koanf:"exclude"`
	OutputDir string   `koanf:"output_dir"`
	Verbose   bool     `koanf:"verbose"`
	Watch     bool     `koanf:"watch"`
	Parallel  int      `koanf:"parallel"`

	// ConfigFile is the YAML file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// Load loads configuration using the default .env file.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	return LoadWithEnvFile(cfgFile, DefaultEnvFile, flags)
}

// LoadWithEnvFile loads configuration from defaults, cfgFile, envFile, the
// environment and flags. A missing envFile or default config file is not an error;
// a missing explicit cfgFile is.
func LoadWithEnvFile(cfgFile, envFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"output":   DefaultOutput,
		"newline":  DefaultNewLine,
		"format":   FormatDiagram,
		"verbose":  false,
		"watch":    false,
		"parallel": DefaultParallel,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := cfgFile
	if used == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			used = DefaultConfigFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading env file %s: %w", envFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigFile = used
	cfg.Tables = splitList(cfg.Tables)
	cfg.Exclude = splitList(cfg.Exclude)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option values before any input is read.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatDiagram:
		// The extension also selects raw or fenced output in output_dir mode.
		if _, err := DiagramMarkdown(c.Output); err != nil {
			return err
		}
	case FormatDocs, FormatText, FormatYAML:
	case FormatMulti:
		if c.OutputDir == "" {
			return fmt.Errorf("format %s requires output_dir", FormatMulti)
		}
	default:
		return fmt.Errorf("unknown format %q (expected %s, %s, %s, %s or %s)",
			c.Format, FormatDiagram, FormatDocs, FormatText, FormatYAML, FormatMulti)
	}

	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	return nil
}

// DiagramMarkdown reports whether a diagram written to path is fenced as markdown
// (.md) or raw (.mmd). Other extensions are rejected.
func DiagramMarkdown(path string) (bool, error) {
	ext := filepath.Ext(path)
	switch strings.ToLower(ext) {
	case ".md":
		return true, nil
	case ".mmd":
		return false, nil
	default:
		return false, fmt.Errorf("invalid output extension %q: only .md and .mmd are supported", ext)
	}
}

// ParseNewLine turns escaped sequences such as `\r\n` into the characters they
// name. An empty value selects "\n".
func ParseNewLine(s string) string {
	if s == "" {
		return "\n"
	}
	return strings.NewReplacer(`\r`, "\r", `\n`, "\n").Replace(s)
}

// splitList flattens comma-separated entries and drops blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
