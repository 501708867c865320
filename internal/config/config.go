package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	appLog "famcal/internal/log"
)

// NOTE: This file provides the configuration model and YAML load/save,
// including first-run config creation and 0600 permissions. Environment
// overrides live in env.go.

const (
	DefaultListen       = "0.0.0.0:5000"
	DefaultRefreshCron  = "@every 5m"
	DefaultHorizonDays  = 7
	DefaultFetchTimeout = "10s"
	DefaultJokeURL      = "https://official-joke-api.appspot.com/random_joke"
	DefaultSiteTitle    = "Family Calendar"
	DefaultSiteOutput   = "index.html"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID tags events from this feed and is used in logs.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label for logs and the UI.
	Name string `yaml:"name" json:"name"`
	// Label is prepended to every event title from this feed (e.g. "NTC: ").
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the dashboard.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// SiteConfig controls static site generation.
type SiteConfig struct {
	Title string `yaml:"title" json:"title"`
	// PasswordHash is hex SHA-256 of Salt+password (see `famcal hash-password`).
	PasswordHash string `yaml:"password_hash" json:"password_hash"`
	Salt         string `yaml:"salt" json:"salt"`
	// Output is the generated HTML path.
	Output string `yaml:"output" json:"output"`
}

// CaptureConfig controls the optional dashboard screenshot taken after
// every refresh.
type CaptureConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url" json:"url"`
	Output  string `yaml:"output" json:"output"`
	Width   int    `yaml:"width" json:"width"`
	Height  int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone events are anchored to. Empty means the
	// host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron schedule for the refresh job, e.g. "*/5 * * * *"
	// or "@every 5m".
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of days after today shown as upcoming.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// FetchTimeout bounds each feed request ("10s", "1m").
	FetchTimeout string `yaml:"fetch_timeout" json:"fetch_timeout"`

	// CacheDir enables the on-disk feed cache when set.
	CacheDir string `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty"`

	// JokeURL is the joke API; "none" disables the lookup.
	JokeURL string `yaml:"joke_url" json:"joke_url"`

	// ICS is the list of subscribed feeds, in priority order for de-dup.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	Site    SiteConfig    `yaml:"site" json:"site"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.FetchTimeout == "" {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.JokeURL == "" {
		c.JokeURL = DefaultJokeURL
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			if c.ICS[i].Name != "" {
				c.ICS[i].ID = c.ICS[i].Name
			} else {
				c.ICS[i].ID = fmt.Sprintf("feed%d", i+1)
			}
		}
	}
	if c.Site.Title == "" {
		c.Site.Title = DefaultSiteTitle
	}
	if c.Site.Output == "" {
		c.Site.Output = DefaultSiteOutput
	}
	if c.Capture.Output == "" {
		c.Capture.Output = "preview.png"
	}
}

// Validate reports settings that cannot work at runtime.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.FetchTimeoutDuration(); err != nil {
		errs = append(errs, fmt.Errorf("fetch_timeout: %w", err))
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("timezone: %w", err))
		}
	}
	for i, f := range c.ICS {
		if f.URL == "" {
			errs = append(errs, fmt.Errorf("ics[%d] (%s): url is empty", i, f.ID))
		}
	}
	return errors.Join(errs...)
}

// FetchTimeoutDuration parses FetchTimeout; "1d" style units are accepted.
func (c *Config) FetchTimeoutDuration() (time.Duration, error) {
	return str2duration.ParseDuration(c.FetchTimeout)
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// JokesEnabled reports whether the dashboard should call the joke API.
func (c *Config) JokesEnabled() bool {
	return c.JokeURL != "" && c.JokeURL != "none"
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - If the file exists, it is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, creating
// the parent directory (0700) and leaving the file at 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".famcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// CaptureURL is the page the screenshot hook loads; by default the local
// dashboard.
func (c *Config) CaptureURL() string {
	if c.Capture.URL != "" {
		return c.Capture.URL
	}
	host, port, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return "http://" + c.Listen + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}
