package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/kirbyam/internal/config"
	"github.com/MrWong99/kirbyam/internal/gamedata"
	"github.com/MrWong99/kirbyam/internal/health"
	"github.com/MrWong99/kirbyam/internal/idalloc"
	"github.com/MrWong99/kirbyam/internal/ledger"
	"github.com/MrWong99/kirbyam/internal/observe"
	"github.com/MrWong99/kirbyam/internal/world"
)

func newValidateCommand(a *app) *cobra.Command {
	var (
		watch    bool
		listen   string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and cross-check the game data",
		Long: `Load the data tables, cross-reference them, allocate ids and build a
world for every configured player (or one per shard mode when no players
are configured). With a ledger configured the ids are also checked
against the published ones.

With --watch the data directory is polled and re-validated on change; a
broken edit keeps the last good data loaded. --listen serves /healthz,
/readyz and /metrics while watching.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if listen == "" {
				listen = a.cfg.Server.ListenAddr
			}
			return a.runValidate(ctx, cmd.OutOrStdout(), watch, listen, interval)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "re-validate whenever the data directory changes")
	cmd.Flags().StringVar(&listen, "listen", "", "serve health and metrics on this address while watching (overrides server.listen_addr)")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "polling interval for --watch")
	return cmd
}

func (a *app) runValidate(ctx context.Context, out io.Writer, watch bool, listen string, interval time.Duration) error {
	if !watch {
		if a.cfg.Ledger.PostgresDSN == "" {
			_, err := a.validate(ctx, out, nil)
			return err
		}
		return a.withLedger(ctx, func(s ledger.Store) error {
			_, err := a.validate(ctx, out, s)
			return err
		})
	}

	if a.cfg.Data.Dir == "" {
		return errors.New("validate: --watch needs a data directory (--data or data.dir)")
	}

	// The provider must be installed before the first metric is recorded.
	var prov *observe.Provider
	if listen != "" {
		var err error
		if prov, err = observe.InitProvider(ctx, observe.ProviderConfig{}); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := prov.Shutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown failed", "err", err)
			}
		}()
	}

	var store ledger.Store
	if dsn := a.cfg.Ledger.PostgresDSN; dsn != "" {
		s, closeFn, err := a.openLedger(ctx, dsn)
		if err != nil {
			return err
		}
		defer closeFn()
		store = s
	}

	dir := a.cfg.Data.Dir
	paths := []string{
		filepath.Join(dir, gamedata.ItemsFile),
		filepath.Join(dir, gamedata.LocationsFile),
		filepath.Join(dir, gamedata.GoalsFile),
		filepath.Join(dir, gamedata.RegionsFile),
	}
	w, err := config.NewWatcher(paths,
		func() (*gamedata.Data, error) { return a.validate(ctx, out, store) },
		func(_, _ *gamedata.Data) { slog.Info("game data reloaded", "dir", dir) },
		config.WithInterval(interval),
	)
	if err != nil {
		return err
	}
	defer w.Stop()

	if listen == "" {
		slog.Info("watching game data", "dir", dir)
		<-ctx.Done()
		return nil
	}

	h := health.New(health.DataLoaded(w.Current))
	if p, ok := store.(health.Pinger); ok {
		h.Add(health.LedgerReachable(p))
	}
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", prov.MetricsHandler())
	srv := &http.Server{
		Addr:              listen,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	slog.Info("watching game data", "dir", dir, "listen", listen)

	select {
	case err := <-errc:
		return fmt.Errorf("validate: serve %s: %w", listen, err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("probe server shutdown failed", "err", err)
	}
	return nil
}

// validate runs every check once and prints a summary to out. store may
// be nil.
func (a *app) validate(ctx context.Context, out io.Writer, store ledger.Store) (*gamedata.Data, error) {
	d, reg, err := a.loadRegistry()
	if err != nil {
		return nil, err
	}

	report := gamedata.Check(d)
	for _, w := range report.Warnings {
		slog.Warn("game data", "warning", w)
	}
	if !report.OK() {
		errs := make([]error, len(report.Errors))
		for i, e := range report.Errors {
			errs[i] = errors.New(e)
		}
		return nil, fmt.Errorf("validate: %d data errors: %w", len(errs), errors.Join(errs...))
	}

	if _, err := world.Generate(ctx, d, a.validationPlayers()); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	if store != nil {
		if err := errors.Join(
			ledger.Verify(ctx, store, idalloc.ItemNamespace, reg.ItemKeyToID()),
			ledger.Verify(ctx, store, idalloc.LocationNamespace, reg.LocationKeyToID()),
		); err != nil {
			return nil, err
		}
	}

	fmt.Fprintf(out, "ok: %d items, %d locations, %d goals, %d regions (%d warnings)\n",
		len(d.Items), len(d.Locations), len(d.Goals), len(d.Regions), len(report.Warnings))
	return d, nil
}

// validationPlayers returns the configured players, or one player per shard
// mode when none are configured.
func (a *app) validationPlayers() []world.PlayerSettings {
	if len(a.cfg.Players) > 0 {
		return a.cfg.Settings()
	}
	modes := []world.ShardMode{world.ShardsVanilla, world.ShardsShuffle, world.ShardsRandomize}
	players := make([]world.PlayerSettings, len(modes))
	for i, m := range modes {
		players[i] = world.PlayerSettings{
			Player:  i + 1,
			Name:    string(m),
			Options: world.Options{Shards: m},
		}
	}
	return players
}
