// Package config loads the YAML configuration file. All duration fields are
// Go duration strings ("15s", "4h"); validation errors name the offending
// field path. A missing file is not an error: defaults apply and the token
// comes from the environment.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Logging   LoggingConfig   `yaml:"logging"`
	Contests  ContestsConfig  `yaml:"contests"`
	Reminders RemindersConfig `yaml:"reminders"`
	Store     StoreConfig     `yaml:"store"`
}

type TelegramConfig struct {
	// Token overrides $TELEGRAM_BOT_TOKEN when set.
	Token       string `yaml:"token,omitempty"`
	PollTimeout string `yaml:"poll_timeout,omitempty"`
	// LogChatID receives warn+ log lines when logging.telegram.enabled.
	LogChatID int64 `yaml:"log_chat_id,omitempty"`
}

type LoggingConfig struct {
	Level    string          `yaml:"level,omitempty"`
	Console  bool            `yaml:"console"`
	File     LoggingFile     `yaml:"file,omitempty"`
	Telegram LoggingTelegram `yaml:"telegram,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `yaml:"enabled"`
	MinLevel   string `yaml:"min_level,omitempty"`
	RatePerSec int    `yaml:"rate_per_sec,omitempty"`
}

type ContestsConfig struct {
	APIURL        string `yaml:"api_url,omitempty"`
	SiteURL       string `yaml:"site_url,omitempty"`
	Timeout       string `yaml:"timeout,omitempty"`
	CheckInterval string `yaml:"check_interval,omitempty"`
}

type RemindersConfig struct {
	// LeadTimes replace the default 24h/1h/15m ladder when set.
	LeadTimes   []LeadTimeConfig `yaml:"lead_times,omitempty"`
	Grace       string           `yaml:"grace,omitempty"`
	Workers     int              `yaml:"workers,omitempty"`
	QueueSize   int              `yaml:"queue_size,omitempty"`
	JobTimeout  string           `yaml:"job_timeout,omitempty"`
	SendTimeout string           `yaml:"send_timeout,omitempty"`
	RatePerSec  int              `yaml:"rate_per_sec,omitempty"`
}

type LeadTimeConfig struct {
	Label  string `yaml:"label"`
	Before string `yaml:"before"`
}

type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Default returns the configuration used when no file (or a partial file)
// is provided.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: "10s",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Telegram: LoggingTelegram{
				MinLevel:   "warn",
				RatePerSec: 1,
			},
		},
		Contests: ContestsConfig{
			Timeout:       "15s",
			CheckInterval: "4h",
		},
		Reminders: RemindersConfig{
			Grace:       "5m",
			Workers:     2,
			QueueSize:   64,
			JobTimeout:  "2m",
			SendTimeout: "10s",
			RatePerSec:  25,
		},
		Store: StoreConfig{
			Path: "./subscribers.json",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults;
// malformed YAML, unknown fields, or invalid durations are errors.
func Load(path string) (*Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every duration field and the lead-time catalog.
func (c *Config) Validate() error {
	fields := []struct {
		path string
		raw  string
	}{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"contests.timeout", c.Contests.Timeout},
		{"contests.check_interval", c.Contests.CheckInterval},
		{"reminders.grace", c.Reminders.Grace},
		{"reminders.job_timeout", c.Reminders.JobTimeout},
		{"reminders.send_timeout", c.Reminders.SendTimeout},
	}
	for _, f := range fields {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	for i, lt := range c.Reminders.LeadTimes {
		if strings.TrimSpace(lt.Label) == "" {
			return fmt.Errorf("reminders.lead_times[%d].label: required", i)
		}
		d, err := ParseDurationField(fmt.Sprintf("reminders.lead_times[%d].before", i), lt.Before)
		if err != nil {
			return err
		}
		if d <= 0 {
			return fmt.Errorf("reminders.lead_times[%d].before: must be > 0", i)
		}
	}
	if c.Reminders.Workers < 0 {
		return fmt.Errorf("reminders.workers: must be >= 0")
	}
	return nil
}

// ParseDurationField parses a Go duration string, naming the field on error.
// Empty input is 0 (caller applies its default).
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// MustDuration is for fields already checked by Validate.
func MustDuration(raw string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(raw))
	return d
}
