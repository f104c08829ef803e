/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the command line flags. Every key is optional.
type fileConfig struct {
	DB             string `yaml:"db"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	APIURL         string `yaml:"api_url"`
	APIToken       string `yaml:"api_token"`
	RefreshWorkers int    `yaml:"refresh_workers"`
	RefreshTimeout string `yaml:"refresh_timeout"`
	RenderJS       bool   `yaml:"render_js"`
	ChromePath     string `yaml:"chrome_path"`
	CacheStaleTime string `yaml:"cache_stale_time"`
	UpdateInterval string `yaml:"update_interval"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
}

// loadConfig reads a YAML config file. Unknown keys are rejected so typos
// don't silently fall back to defaults.
func loadConfig(path string) (*fileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var cfg fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// values returns the set keys keyed by flag name.
func (c *fileConfig) values() map[string]string {
	out := make(map[string]string)
	put := func(flag, v string) {
		if v != "" {
			out[flag] = v
		}
	}
	put("db", c.DB)
	put("host", c.Host)
	put("api-url", c.APIURL)
	put("api-token", c.APIToken)
	put("refresh-timeout", c.RefreshTimeout)
	put("chrome-path", c.ChromePath)
	put("cache-stale-time", c.CacheStaleTime)
	put("update-interval", c.UpdateInterval)
	put("log-level", c.LogLevel)
	put("log-format", c.LogFormat)
	if c.Port != 0 {
		out["port"] = strconv.Itoa(c.Port)
	}
	if c.RefreshWorkers != 0 {
		out["refresh-workers"] = strconv.Itoa(c.RefreshWorkers)
	}
	if c.RenderJS {
		out["render-js"] = "true"
	}
	return out
}

// applyConfig copies file values onto flags the user did not set on the
// command line. Keys for flags the command doesn't have are ignored.
func applyConfig(cmd *cobra.Command, cfg *fileConfig) error {
	flags := cmd.Flags()
	for name, value := range cfg.values() {
		f := flags.Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("invalid config value for %s: %w", name, err)
		}
	}
	return nil
}

// loadConfigFlag applies --config, if given.
func loadConfigFlag(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read --config: %w", err)
	}
	if path == "" {
		return nil
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	return applyConfig(cmd, cfg)
}
