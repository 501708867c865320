package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"famcal/internal/agenda"
	"famcal/internal/capture"
	"famcal/internal/config"
	"famcal/internal/joke"
	appLog "famcal/internal/log"
	"famcal/internal/web"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live dashboard and the background refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			// --listen overrides the config file and environment.
			if listen != "" {
				cfg.Listen = listen
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	appLog.Info("famcal starting", "version", Version)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	sources := feedSources(cfg)
	if len(sources) == 0 {
		appLog.Warn("no feeds configured; the dashboard will stay empty")
	}

	store := agenda.NewStore()
	refresher := agenda.NewRefresher(fetcher, sources, cfg.Location(), store)

	var hooks []agenda.Hook
	if cfg.Capture.Enabled {
		hooks = append(hooks, captureHook(cfg))
	}
	sched, err := agenda.NewScheduler(cfg.RefreshCron, refresher, hooks...)
	if err != nil {
		return err
	}

	var teller joke.Teller
	if cfg.JokesEnabled() {
		teller = joke.NewHTTPTeller(cfg.JokeURL, joke.DefaultTimeout)
	}
	srv := web.NewServer(cfg, store, refresher, teller)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	err = g.Wait()
	appLog.Info("famcal exiting")
	return err
}

func captureOptions(cfg *config.Config) capture.Options {
	o := capture.Options{
		URL:        cfg.CaptureURL(),
		OutputPath: cfg.Capture.Output,
		Width:      cfg.Capture.Width,
		Height:     cfg.Capture.Height,
	}
	if cfg.BasicAuth != nil {
		o.Username = cfg.BasicAuth.Username
		o.Password = cfg.BasicAuth.Password
	}
	return o
}

// captureHook screenshots the dashboard after each published refresh. The
// very first capture can race the server start; it is retried on the next
// tick.
func captureHook(cfg *config.Config) agenda.Hook {
	return func(ctx context.Context, snap *agenda.Snapshot) {
		opts := captureOptions(cfg)
		if err := capture.CapturePNG(ctx, opts); err != nil {
			appLog.Error("dashboard capture failed", err, "url", opts.URL)
			return
		}
		appLog.Info("dashboard captured", "output", opts.OutputPath, "events", len(snap.Events))
	}
}
