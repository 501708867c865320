// Package cli wires configuration, the refresh pipeline and the HTTP server
// into the famcal command tree.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"famcal/internal/config"
	"famcal/internal/ics"
	appLog "famcal/internal/log"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version is overridden at build time with -ldflags.
var Version = "0.1.0-dev"

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string

	stdout io.Writer
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{stdout: os.Stdout}

	cmd := &cobra.Command{
		Use:   "famcal",
		Short: "Merge household calendar feeds into one dashboard",
		Long: `famcal fetches several iCalendar feeds, merges them into one event list
and shows it on a live dashboard or as a static, password-gated page.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.stdout = cmd.OutOrStdout()
			if err := config.LoadEnvFile(opts.envFile); err != nil {
				return err
			}
			level := opts.logLevel
			if !cmd.Flags().Changed("log-level") {
				if env := os.Getenv("FAMCAL_LOG_LEVEL"); env != "" {
					level = env
				}
			}
			appLog.SetLevel(appLog.ParseLevel(level))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "famcal.yaml", "Path to config file (created with defaults if missing)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "settings.env", "Dotenv file loaded before the environment overlay")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newServeCmd(opts),
		newGenerateCmd(opts),
		newEventsCmd(opts),
		newHashPasswordCmd(opts),
		newCaptureCmd(opts),
	)
	return cmd
}

// loadConfig reads the config file, overlays the environment and validates
// the result.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appLog.Debug("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"ics_count", len(cfg.ICS),
		"cache_dir", cfg.CacheDir,
		"capture", cfg.Capture.Enabled,
	)
	return cfg, nil
}

// feedSources converts configured feeds to fetch sources, skipping entries
// without a URL.
func feedSources(cfg *config.Config) []ics.Source {
	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		if strings.TrimSpace(c.URL) == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: c.ID, URL: c.URL, Label: c.Label})
	}
	return sources
}

func newFetcher(cfg *config.Config) (*ics.Fetcher, error) {
	timeout, err := cfg.FetchTimeoutDuration()
	if err != nil {
		return nil, err
	}
	return ics.NewFetcher(cfg.CacheDir, timeout), nil
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
