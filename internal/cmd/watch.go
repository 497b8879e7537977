package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parley-irc/parley/internal/config"
	"github.com/parley-irc/parley/internal/log"
	"github.com/parley-irc/parley/internal/metrics"
)

// watchOptions controls runWatch.
type watchOptions struct {
	interval time.Duration
	install  bool
	// cycles stops the loop after that many cycles; 0 runs until cancelled.
	cycles int
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check for updates periodically",
		Long: `Watch runs a check cycle immediately and then once per updater.interval
until interrupted. With --install, updates found are installed as well.

When metrics.listen is configured, Prometheus metrics are served on
/metrics at that address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if opts.interval == 0 {
				opts.interval = cfg.Updater.IntervalDuration()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Override updater.interval")
	cmd.Flags().BoolVar(&opts.install, "install", false, "Install updates as they are found")
	cmd.Flags().IntVar(&opts.cycles, "count", 0, "Stop after this many cycles (0 runs until interrupted)")

	return cmd
}

func runWatch(ctx context.Context, out io.Writer, cfg *config.Config, opts watchOptions) error {
	logger := log.WithComponent("watch")

	if cfg.Metrics.Listen != "" {
		srv, err := serveMetrics(cfg.Metrics.Listen)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	rt, err := newRuntime(cfg, parleyVersion)
	if err != nil {
		return err
	}
	defer rt.Close()

	if opts.interval <= 0 {
		opts.interval = config.DefaultInterval
	}
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", opts.interval).Bool("install", opts.install).Msg("Watching for updates")

	for cycle := 1; ; cycle++ {
		rt.watchCycle(ctx, out, opts.install)

		if opts.cycles > 0 && cycle >= opts.cycles {
			return nil
		}
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopped watching")
			return nil
		case <-ticker.C:
		}
	}
}

// watchCycle checks once and optionally installs what was found, printing
// one summary line.
func (r *runtime) watchCycle(ctx context.Context, out io.Writer, install bool) {
	stamp := time.Now().Format(time.DateTime)

	if !install {
		report := r.check(ctx)
		fmt.Fprintf(out, "%s  %d update(s) available\n", stamp, report.Updates())
		return
	}

	report, err := r.install(ctx, nil, nil)
	if err != nil {
		fmt.Fprintf(out, "%s  install failed: %v\n", stamp, err)
		return
	}
	installed := len(report.Results) - report.Failures()
	fmt.Fprintf(out, "%s  %d installed, %d failed\n", stamp, installed, report.Failures())
	if report.RestartRequired() {
		fmt.Fprintf(out, "%s  restart parley to finish updating\n", stamp)
	}
}

// serveMetrics starts the Prometheus endpoint on addr in the background.
func serveMetrics(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger := log.WithComponent("metrics")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")

	return srv, nil
}
