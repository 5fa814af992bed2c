// Package config loads the typed configuration this process runs with:
// the projects root, an optional allow-list, display timezone, log level,
// plan identifier, and correction factors (§6).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every externally tunable setting for the process.
type Config struct {
	ProjectsRoot      string   `mapstructure:"projects_root"`
	AllowedProjects   []string `mapstructure:"allowed_projects"`
	DisplayTimezone   string   `mapstructure:"display_timezone"`
	LogLevel          string   `mapstructure:"log_level"`
	LogFormat         string   `mapstructure:"log_format"`
	PlanType          string   `mapstructure:"plan_type"`
	CorrectionSession float64  `mapstructure:"correction_factor_session"`
	CorrectionWeekly  float64  `mapstructure:"correction_factor_weekly_all"`
	CorrectionPerModel float64 `mapstructure:"correction_factor_weekly_per_model"`

	Watcher WatcherConfig `mapstructure:"watcher"`
	Server  ServerConfig  `mapstructure:"server"`
}

// Location resolves DisplayTimezone, falling back to UTC if it is unset or
// unrecognized by the local tzdata so date-boundary formatting never fails
// a request.
func (c *Config) Location() *time.Location {
	if c.DisplayTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WatcherConfig holds file watcher configuration (§4.10).
type WatcherConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	DebounceMS     int      `mapstructure:"debounce_ms"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
}

// ServerConfig holds the thin transport demonstrator's bind address (§1.2).
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// bareEnvNames are recognized without the CONVOLOG_ prefix, matching the
// original tool's unprefixed environment contract (§6) so existing
// deployments' environment files need no renaming.
var bareEnvNames = []string{
	"PROJECTS_ROOT",
	"ALLOWED_PROJECTS",
	"DISPLAY_TIMEZONE",
	"LOG_LEVEL",
}

// Load builds a Config from defaults, an optional YAML file, and the
// environment. configPath may be empty, in which case only the
// conventional search paths are consulted.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.convolog")
		v.AddConfigPath("/etc/convolog")
	}

	v.SetEnvPrefix("CONVOLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, name := range bareEnvNames {
		key := strings.ToLower(name)
		if err := v.BindEnv(key, name, "CONVOLOG_"+name); err != nil {
			return nil, fmt.Errorf("bind bare env %s: %w", name, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("projects_root", "")
	v.SetDefault("allowed_projects", []string{})
	v.SetDefault("display_timezone", "America/New_York")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("plan_type", "pro")
	v.SetDefault("correction_factor_session", 0.24)
	v.SetDefault("correction_factor_weekly_all", 0.20)
	v.SetDefault("correction_factor_weekly_per_model", 0.18)

	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.debounce_ms", 2000)
	v.SetDefault("watcher.ignore_patterns", []string{".*"})

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
}
