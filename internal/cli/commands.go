package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"famcal/internal/agenda"
	"famcal/internal/capture"
	"famcal/internal/config"
	"famcal/internal/render"
	"famcal/internal/window"
)

var errNoFeeds = errors.New("no feeds configured (set ics in the config file, FAMCAL_FEEDS, or COZI_ICS_URL/OUTLOOK_ICS_URL)")

// collect runs a single refresh outside the scheduler.
func collect(ctx context.Context, cfg *config.Config) (*agenda.Snapshot, error) {
	sources := feedSources(cfg)
	if len(sources) == 0 {
		return nil, errNoFeeds
	}
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	r := agenda.NewRefresher(fetcher, sources, cfg.Location(), agenda.NewStore())
	return r.Refresh(ctx)
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Fetch all feeds once and write the static calendar page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.Site.Output
			}

			snap, err := collect(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("fetching events: %w", err)
			}

			now := time.Now().In(cfg.Location())
			events := window.Horizon(snap.Events, now, cfg.HorizonDays)
			if err := render.WriteSite(out, render.PageData{
				Title:        cfg.Site.Title,
				Events:       events,
				PasswordHash: cfg.Site.PasswordHash,
				Salt:         cfg.Site.Salt,
				GeneratedAt:  now,
			}); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}

			fmt.Fprintf(opts.stdout, "%s generated (%d events)\n", out, len(events))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output HTML path (default: site.output from config)")
	return cmd
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var horizonOnly bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Fetch all feeds once and print the merged events as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			snap, err := collect(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("fetching events: %w", err)
			}

			events := snap.Events
			if horizonOnly {
				events = window.Horizon(events, time.Now().In(cfg.Location()), cfg.HorizonDays)
			}

			enc := json.NewEncoder(opts.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		},
	}
	cmd.Flags().BoolVar(&horizonOnly, "horizon", false, "Only print events from today through the horizon")
	return cmd
}

func newHashPasswordCmd(opts *rootOptions) *cobra.Command {
	var salt string

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the hash to use as site.password_hash",
		Long: `Print the hex SHA-256 of salt+password for the static page's password gate.
Without an argument the password is read from the first line of stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password is empty")
			}
			fmt.Fprintln(opts.stdout, render.HashPassword(salt, password))
			return nil
		},
	}
	cmd.Flags().StringVar(&salt, "salt", "", "Salt prepended to the password (must match site.salt)")
	return cmd
}

func newCaptureCmd(opts *rootOptions) *cobra.Command {
	var (
		url     string
		out     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Screenshot a running dashboard to PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			co := captureOptions(cfg)
			if url != "" {
				co.URL = url
			}
			if out != "" {
				co.OutputPath = out
			}
			co.Timeout = timeout

			if err := capture.CapturePNG(cmd.Context(), co); err != nil {
				return err
			}
			fmt.Fprintf(opts.stdout, "%s captured from %s\n", co.OutputPath, co.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Page to capture (default: the local dashboard)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output PNG path (default: capture.output from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", capture.DefaultTimeout, "Overall capture timeout")
	return cmd
}
