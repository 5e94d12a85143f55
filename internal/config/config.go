package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultGroup    = "default"
	DefaultInterval = 5 * time.Minute
)

// CalDAVConfig holds credentials for caldav+http(s) feeds.
type CalDAVConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
}

// GoogleConfig holds OAuth client settings for google:// feeds.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Account      string `yaml:"account"`
}

// SESConfig holds AWS SES settings for mailto: endpoints.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	FromAddress     string `yaml:"from_address"`
	FromName        string `yaml:"from_name"`
}

// Config is the application configuration.
type Config struct {
	FeedURL     string        `yaml:"feed_url"`
	Group       string        `yaml:"group"`
	Endpoints   []string      `yaml:"endpoints"`
	FilterRegex string        `yaml:"filter_regex"`
	Interval    time.Duration `yaml:"interval"`
	CacheWindow time.Duration `yaml:"cache_window"`
	Timezone    string        `yaml:"timezone"`
	DatabaseURL string        `yaml:"database_url"`
	LogLevel    string        `yaml:"log_level"`
	Environment string        `yaml:"-"`

	CalDAV CalDAVConfig `yaml:"caldav"`
	Google GoogleConfig `yaml:"google"`
	SES    SESConfig    `yaml:"ses"`
}

// Load reads the configuration. A .env file is loaded first if present, then
// the YAML file named by CALWATCH_CONFIG, then environment variables, which
// win over the file.
func Load() (*Config, error) {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	if path := getenv("CALWATCH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	dur := func(dst *time.Duration, key string) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = d
		return nil
	}

	str(&cfg.FeedURL, "ICS_URL", "FEED_URL")
	str(&cfg.Group, "GROUP")
	if v := getenv("WEBHOOK_URLS"); v != "" {
		cfg.Endpoints = splitList(v)
	}
	str(&cfg.FilterRegex, "FILTER_REGEX")
	if err := dur(&cfg.Interval, "INTERVAL"); err != nil {
		return nil, err
	}
	if err := dur(&cfg.CacheWindow, "CACHE_WINDOW"); err != nil {
		return nil, err
	}
	str(&cfg.Timezone, "PRIMARY_TIMEZONE")
	str(&cfg.DatabaseURL, "DATABASE_URL")
	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.Environment, "GO_ENV")

	str(&cfg.CalDAV.Username, "CALDAV_USERNAME")
	str(&cfg.CalDAV.Password, "CALDAV_PASSWORD")
	str(&cfg.CalDAV.Calendar, "CALDAV_CALENDAR")

	str(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	str(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	str(&cfg.Google.Account, "GOOGLE_ACCOUNT")

	str(&cfg.SES.Region, "AWS_REGION")
	str(&cfg.SES.AccessKeyID, "AWS_ACCESS_KEY_ID")
	str(&cfg.SES.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	str(&cfg.SES.FromAddress, "SES_FROM_ADDRESS")
	str(&cfg.SES.FromName, "SES_FROM_NAME")

	cfg.Normalize()
	return cfg, nil
}

// Normalize fills in defaults for unset values.
func (c *Config) Normalize() {
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Endpoints = splitList(strings.Join(c.Endpoints, ","))
}

// Validate reports every missing or malformed setting needed to sync.
func (c *Config) Validate() error {
	var errs []error
	if c.FeedURL == "" {
		errs = append(errs, errors.New("ICS_URL environment variable not set"))
	}
	if len(c.Endpoints) == 0 {
		errs = append(errs, errors.New("WEBHOOK_URLS environment variable not set"))
	}
	if c.FilterRegex != "" {
		if _, err := regexp.Compile(c.FilterRegex); err != nil {
			errs = append(errs, fmt.Errorf("invalid FILTER_REGEX: %w", err))
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err))
	}
	if c.CacheWindow < 0 {
		errs = append(errs, errors.New("CACHE_WINDOW must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateSync is Validate plus the settings a sync run needs. Only a dry run
// may go without DATABASE_URL, since it never writes the snapshot.
func (c *Config) ValidateSync(dryRun bool) error {
	err := c.Validate()
	if c.DatabaseURL == "" && !dryRun {
		err = errors.Join(err, errors.New("DATABASE_URL environment variable not set"))
	}
	return err
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
