package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"markupcheck-backend/internal/fetch"
	"markupcheck-backend/internal/markup"
)

const defaultConfigFile = ".markupcheck.toml"

type settings struct {
	Format        string        `toml:"format"`
	FailOn        string        `toml:"fail_on"`
	ContextRadius int           `toml:"context_radius"`
	Color         string        `toml:"color"`
	Workers       int           `toml:"workers"`
	Fetch         fetchSettings `toml:"fetch"`
}

type fetchSettings struct {
	Timeout      string `toml:"timeout"`
	MaxBytes     int64  `toml:"max_bytes"`
	UserAgent    string `toml:"user_agent"`
	AllowPrivate bool   `toml:"allow_private"`
}

func defaultSettings() settings {
	return settings{
		Format:        "text",
		FailOn:        "error",
		ContextRadius: markup.DefaultContextRadius,
		Color:         "auto",
		Workers:       4,
		Fetch:         fetchSettings{Timeout: "10s", AllowPrivate: true},
	}
}

// loadSettings reads path over the defaults. An empty path looks for
// .markupcheck.toml in the working directory and tolerates its absence.
func loadSettings(path string) (settings, error) {
	cfg := defaultSettings()
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return settings{}, fmt.Errorf("%s: %w", path, err)
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return settings{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return settings{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (s settings) validate() error {
	switch s.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", s.Format)
	}
	if _, err := failRank(s.FailOn); err != nil {
		return err
	}
	if s.ContextRadius < 0 {
		return fmt.Errorf("context_radius must not be negative")
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if _, err := s.Fetch.timeout(); err != nil {
		return err
	}
	if s.Fetch.MaxBytes < 0 {
		return fmt.Errorf("[fetch].max_bytes must not be negative")
	}
	return nil
}

func (f fetchSettings) timeout() (time.Duration, error) {
	if strings.TrimSpace(f.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(f.Timeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("[fetch].timeout must be a duration like 10s, got %q", f.Timeout)
	}
	return d, nil
}

func (f fetchSettings) options() fetch.Options {
	timeout, _ := f.timeout()
	return fetch.Options{
		Timeout:      timeout,
		MaxBytes:     f.MaxBytes,
		UserAgent:    f.UserAgent,
		AllowPrivate: f.AllowPrivate,
	}
}

// resolveSettings loads the config file and applies explicitly set flags.
func resolveSettings(cmd *cobra.Command) (settings, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadSettings(path)
	if err != nil {
		return settings{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("fail-on") {
		cfg.FailOn, _ = flags.GetString("fail-on")
	}
	if flags.Changed("context-radius") {
		cfg.ContextRadius, _ = flags.GetInt("context-radius")
	}
	if flags.Changed("color") {
		cfg.Color, _ = flags.GetString("color")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Fetch.Timeout = d.String()
	}
	if flags.Changed("allow-private") {
		cfg.Fetch.AllowPrivate, _ = flags.GetBool("allow-private")
	}
	if err := cfg.validate(); err != nil {
		return settings{}, err
	}
	return cfg, nil
}

// failRank maps a --fail-on value to the lowest severity rank that fails
// the run. Zero disables the threshold.
func failRank(failOn string) (int, error) {
	switch failOn {
	case "error":
		return markup.SeverityError.Rank(), nil
	case "warning":
		return markup.SeverityWarning.Rank(), nil
	case "info":
		return markup.SeverityInfo.Rank(), nil
	case "none":
		return 0, nil
	default:
		return 0, fmt.Errorf("fail_on must be error, warning, info or none, got %q", failOn)
	}
}
