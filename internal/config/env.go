package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables on cfg. Every key accepts the
// FAMCAL_ prefixed name; some also accept the historical unprefixed names.
//
// Feeds come from FAMCAL_FEEDS (entries "[id[|label]=]url" separated by
// commas or newlines), COZI_ICS_URL and OUTLOOK_ICS_URL. When any of them
// is set they replace the feeds from the config file.
func ApplyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix("FAMCAL")
	v.AutomaticEnv()

	_ = v.BindEnv("listen", "FAMCAL_LISTEN")
	_ = v.BindEnv("timezone", "FAMCAL_TIMEZONE", "TZ_NAME")
	_ = v.BindEnv("refresh_cron", "FAMCAL_REFRESH_CRON")
	_ = v.BindEnv("refresh_interval", "FAMCAL_REFRESH_INTERVAL")
	_ = v.BindEnv("refresh_minutes", "FAMCAL_REFRESH_MINUTES", "REFRESH_MINUTES")
	_ = v.BindEnv("horizon_days", "FAMCAL_HORIZON_DAYS", "HORIZON_DAYS")
	_ = v.BindEnv("fetch_timeout", "FAMCAL_FETCH_TIMEOUT")
	_ = v.BindEnv("cache_dir", "FAMCAL_CACHE_DIR")
	_ = v.BindEnv("joke_url", "FAMCAL_JOKE_URL")
	_ = v.BindEnv("feeds", "FAMCAL_FEEDS")
	_ = v.BindEnv("cozi_ics_url", "FAMCAL_COZI_ICS_URL", "COZI_ICS_URL")
	_ = v.BindEnv("outlook_ics_url", "FAMCAL_OUTLOOK_ICS_URL", "OUTLOOK_ICS_URL")
	_ = v.BindEnv("outlook_label", "FAMCAL_OUTLOOK_LABEL", "OUTLOOK_LABEL")
	_ = v.BindEnv("site_password_hash", "FAMCAL_SITE_PASSWORD_HASH", "SITE_PASSWORD_HASH")
	_ = v.BindEnv("site_password_salt", "FAMCAL_SITE_PASSWORD_SALT", "SITE_PASSWORD_SALT")
	_ = v.BindEnv("site_title", "FAMCAL_SITE_TITLE")
	_ = v.BindEnv("site_output", "FAMCAL_SITE_OUTPUT")
	_ = v.BindEnv("basic_auth_username", "FAMCAL_BASIC_AUTH_USERNAME")
	_ = v.BindEnv("basic_auth_password", "FAMCAL_BASIC_AUTH_PASSWORD")
	_ = v.BindEnv("capture_enabled", "FAMCAL_CAPTURE_ENABLED")
	_ = v.BindEnv("capture_output", "FAMCAL_CAPTURE_OUTPUT")

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}

	setString("listen", &cfg.Listen)
	setString("timezone", &cfg.Timezone)
	setString("fetch_timeout", &cfg.FetchTimeout)
	setString("cache_dir", &cfg.CacheDir)
	setString("joke_url", &cfg.JokeURL)
	setString("site_password_hash", &cfg.Site.PasswordHash)
	setString("site_password_salt", &cfg.Site.Salt)
	setString("site_title", &cfg.Site.Title)
	setString("site_output", &cfg.Site.Output)
	setString("capture_output", &cfg.Capture.Output)

	if v.IsSet("capture_enabled") {
		cfg.Capture.Enabled = v.GetBool("capture_enabled")
	}

	switch {
	case v.IsSet("refresh_cron"):
		cfg.RefreshCron = strings.TrimSpace(v.GetString("refresh_cron"))
	case v.IsSet("refresh_interval"):
		d, err := str2duration.ParseDuration(strings.TrimSpace(v.GetString("refresh_interval")))
		if err != nil || d <= 0 {
			return fmt.Errorf("FAMCAL_REFRESH_INTERVAL: invalid duration %q", v.GetString("refresh_interval"))
		}
		cfg.RefreshCron = "@every " + d.String()
	case v.IsSet("refresh_minutes"):
		if m := v.GetInt("refresh_minutes"); m > 0 {
			cfg.RefreshCron = fmt.Sprintf("@every %dm", m)
		}
	}

	if v.IsSet("horizon_days") {
		if n := v.GetInt("horizon_days"); n > 0 {
			cfg.HorizonDays = n
		}
	}

	user, pass := v.GetString("basic_auth_username"), v.GetString("basic_auth_password")
	if user != "" && pass != "" {
		cfg.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}

	feeds, err := ParseFeeds(v.GetString("feeds"))
	if err != nil {
		return err
	}
	if u := strings.TrimSpace(v.GetString("cozi_ics_url")); u != "" {
		feeds = append(feeds, ICSConfig{ID: "cozi", Name: "Cozi", URL: u})
	}
	if u := strings.TrimSpace(v.GetString("outlook_ics_url")); u != "" {
		feeds = append(feeds, ICSConfig{ID: "outlook", Name: "Outlook", URL: u, Label: v.GetString("outlook_label")})
	}
	if len(feeds) > 0 {
		cfg.ICS = feeds
	}

	cfg.Normalize()
	return nil
}

// ParseFeeds parses a FAMCAL_FEEDS value. Each entry is a bare URL or
// "id=url" or "id|label=url"; an "=" after "://" belongs to the URL.
func ParseFeeds(raw string) ([]ICSConfig, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	feeds := make([]ICSConfig, 0, len(fields))
	for i, entry := range fields {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		f := ICSConfig{URL: entry}
		eq := strings.Index(entry, "=")
		scheme := strings.Index(entry, "://")
		if eq > 0 && (scheme == -1 || eq < scheme) {
			head := entry[:eq]
			f.URL = entry[eq+1:]
			f.ID, f.Label, _ = strings.Cut(head, "|")
		}
		if !strings.Contains(f.URL, "://") {
			return nil, fmt.Errorf("FAMCAL_FEEDS entry %d: %q is not a URL", i+1, entry)
		}
		if f.ID == "" {
			f.ID = fmt.Sprintf("feed%d", i+1)
		}
		feeds = append(feeds, f)
	}
	return feeds, nil
}
