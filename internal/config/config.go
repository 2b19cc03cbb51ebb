package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tree-sitter/tree-sitter-simplex/internal/grammar"
)

type Config struct {
	Version             int                 `toml:"version"`
	GrammarsPath        string              `toml:"grammars_path"`
	GrammarVerification GrammarVerification `toml:"grammar_verification"`
	Languages           map[string]Language `toml:"languages"`
	WatchPaths          []string            `toml:"watch_paths"`
	Exclude             Exclude             `toml:"exclude"`
	Watch               Watch               `toml:"watch"`
	History             History             `toml:"history"`
	Observability       Observability       `toml:"observability"`
}

type GrammarVerification struct {
	Enabled *bool `toml:"enabled"`
}

type Language struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
	Filenames  []string `toml:"filenames"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce     time.Duration `toml:"debounce"`
	EventsPerSec float64       `toml:"events_per_sec"`
	EventBurst   int           `toml:"event_burst"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	Keep    int    `toml:"keep"`
}

type Observability struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.GrammarsPath) == "" {
		cfg.GrammarsPath = "grammars"
	}
	if len(cfg.WatchPaths) == 0 {
		cfg.WatchPaths = []string{"."}
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "node_modules", "vendor"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.EventsPerSec == 0 {
		cfg.Watch.EventsPerSec = 50
	}
	if cfg.Watch.EventBurst == 0 {
		cfg.Watch.EventBurst = 100
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "data/history.db"
	}
	if cfg.History.Keep == 0 {
		cfg.History.Keep = 10000
	}
	if strings.TrimSpace(cfg.Observability.Addr) == "" {
		cfg.Observability.Addr = "127.0.0.1:9471"
	}
	if strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		cfg.Observability.OTLPEndpoint = "127.0.0.1:4317"
	}
}

func validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.EventsPerSec < 0 {
		return fmt.Errorf("watch.events_per_sec must not be negative")
	}
	if cfg.History.Keep < 0 {
		return fmt.Errorf("history.keep must not be negative")
	}
	if _, err := cfg.LanguageRegistry(); err != nil {
		return err
	}
	return nil
}

// VerificationEnabled reports whether grammar artifact verification should
// run at startup. Defaults to on.
func (c *Config) VerificationEnabled() bool {
	if c.GrammarVerification.Enabled == nil {
		return true
	}
	return *c.GrammarVerification.Enabled
}

// LanguageRegistry builds the grammar registry with this config's
// per-language overrides applied.
func (c *Config) LanguageRegistry() (map[string]grammar.LanguageSpec, error) {
	if len(c.Languages) == 0 {
		return grammar.BuildLanguageRegistry(nil)
	}
	overrides := make(map[string]grammar.LanguageOverride, len(c.Languages))
	for name, lang := range c.Languages {
		overrides[strings.ToLower(strings.TrimSpace(name))] = grammar.LanguageOverride{
			Enabled:    lang.Enabled,
			Extensions: lang.Extensions,
			Filenames:  lang.Filenames,
		}
	}
	return grammar.BuildLanguageRegistry(overrides)
}
