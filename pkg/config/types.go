package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent sketchtable configuration stored as
// config.toml in the .sketchtable/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version      int                `toml:"version"`
	API          APIConfig          `toml:"api"`
	Stream       StreamConfig       `toml:"stream"`
	Pricing      PricingConfig      `toml:"pricing"`
	Instructions InstructionsConfig `toml:"instructions"`
	Storage      StorageConfig      `toml:"storage"`
}

// APIConfig holds the chat-completions request settings.
type APIConfig struct {
	Endpoint    string  `toml:"endpoint,omitempty"`
	Model       string  `toml:"model,omitempty"`
	Temperature float64 `toml:"temperature"`
	TopP        float64 `toml:"top_p"`
	MaxTokens   int     `toml:"max_tokens,omitempty"`
	User        string  `toml:"user,omitempty"`
}

// StreamConfig holds settings for the stream coordinator.
type StreamConfig struct {
	// ProgressCap is the reply size in bytes that counts as 100% progress.
	ProgressCap int `toml:"progress_cap,omitempty"`
}

// PricingConfig points at an optional JSON file of per-model rate overrides.
type PricingConfig struct {
	File string `toml:"file,omitempty"`
}

// InstructionsConfig points at the instruction file sent as the system
// message: a spreadsheet (.xlsx) or any text file.
type InstructionsConfig struct {
	Path string `toml:"path,omitempty"`
}

// StorageConfig selects where analysis history is kept. PostgresDSN wins
// over SQLitePath; with neither set, history is kept in memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"api.endpoint": {
		get: func(c *Config) string { return c.API.Endpoint },
		set: func(c *Config, v string) error { c.API.Endpoint = v; return nil },
	},
	"api.model": {
		get: func(c *Config) string { return c.API.Model },
		set: func(c *Config, v string) error { c.API.Model = v; return nil },
	},
	"api.temperature": {
		get: func(c *Config) string { return strconv.FormatFloat(c.API.Temperature, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := parseUnitFloat("api.temperature", v, 2)
			if err != nil {
				return err
			}
			c.API.Temperature = f
			return nil
		},
	},
	"api.top_p": {
		get: func(c *Config) string { return strconv.FormatFloat(c.API.TopP, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := parseUnitFloat("api.top_p", v, 1)
			if err != nil {
				return err
			}
			c.API.TopP = f
			return nil
		},
	},
	"api.max_tokens": {
		get: func(c *Config) string { return formatPositiveInt(c.API.MaxTokens) },
		set: func(c *Config, v string) error {
			n, err := parsePositiveInt("api.max_tokens", v)
			if err != nil {
				return err
			}
			c.API.MaxTokens = n
			return nil
		},
	},
	"api.user": {
		get: func(c *Config) string { return c.API.User },
		set: func(c *Config, v string) error { c.API.User = v; return nil },
	},
	"stream.progress_cap": {
		get: func(c *Config) string { return formatPositiveInt(c.Stream.ProgressCap) },
		set: func(c *Config, v string) error {
			n, err := parsePositiveInt("stream.progress_cap", v)
			if err != nil {
				return err
			}
			c.Stream.ProgressCap = n
			return nil
		},
	},
	"pricing.file": {
		get: func(c *Config) string { return c.Pricing.File },
		set: func(c *Config, v string) error { c.Pricing.File = v; return nil },
	},
	"instructions.path": {
		get: func(c *Config) string { return c.Instructions.Path },
		set: func(c *Config, v string) error { c.Instructions.Path = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
}

func formatPositiveInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func parsePositiveInt(key, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid value for %s: must be positive, got %d", key, n)
	}
	return n, nil
}

func parseUnitFloat(key, v string, upper float64) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if f < 0 || f > upper {
		return 0, fmt.Errorf("invalid value for %s: must be between 0 and %g, got %g", key, upper, f)
	}
	return f, nil
}
