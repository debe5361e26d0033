package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/kirbyam/internal/config"
	"github.com/MrWong99/kirbyam/internal/gamedata"
	"github.com/MrWong99/kirbyam/internal/ledger"
	"github.com/MrWong99/kirbyam/internal/registry"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	dataDir    string
	logLevel   string

	cfg *config.Config

	// openLedger connects to the configured ledger. Tests replace it.
	openLedger func(ctx context.Context, dsn string) (ledger.Store, func(), error)
}

func newApp() *app {
	return &app{
		openLedger: func(ctx context.Context, dsn string) (ledger.Store, func(), error) {
			s, closeFn, err := ledger.Connect(ctx, dsn)
			if err != nil {
				return nil, nil, err
			}
			return s, closeFn, nil
		},
	}
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(newApp())
}

func newRootCommandWith(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "kirbyam",
		Short: "Kirby & The Amazing Mirror multiworld tooling",
		Long: `kirbyam loads the game data tables, allocates the stable item and
location ids the multiworld server sees, and builds per-player worlds.

Examples:
  kirbyam validate --data ./data
  kirbyam validate --config kirbyam.yaml --watch --listen :9090
  kirbyam ids --json
  kirbyam generate --config kirbyam.yaml --out ./output
  kirbyam ledger verify --config kirbyam.yaml
  kirbyam connect --config kirbyam.yaml --slot Kirby
  kirbyam lookup`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("KIRBYAM_CONFIG"),
		"path to the YAML configuration file")
	root.PersistentFlags().StringVar(&a.dataDir, "data", "",
		"game data directory (overrides data.dir; default: embedded data)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"log level: debug, info, warn, error (overrides server.log_level)")

	root.AddCommand(newValidateCommand(a))
	root.AddCommand(newIDsCommand(a))
	root.AddCommand(newGenerateCommand(a))
	root.AddCommand(newLookupCommand(a))
	root.AddCommand(newLedgerCommand(a))
	root.AddCommand(newConnectCommand(a))
	return root
}

// setup loads the configuration, applies flag overrides and installs the
// default logger.
func (a *app) setup() error {
	cfg := &config.Config{}
	if a.configPath != "" {
		var err error
		if cfg, err = config.Load(a.configPath); err != nil {
			return err
		}
	}
	if a.dataDir != "" {
		cfg.Data.Dir = a.dataDir
	}
	if a.logLevel != "" {
		lvl := config.LogLevel(a.logLevel)
		if !lvl.IsValid() {
			return fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", a.logLevel)
		}
		cfg.Server.LogLevel = lvl
	}
	a.cfg = cfg

	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Debug("configuration loaded", "config", a.configPath, "data_dir", cfg.Data.Dir)
	return nil
}

// loadData reads the configured data directory, or the embedded data when
// none is set.
func (a *app) loadData() (*gamedata.Data, error) {
	if a.cfg.Data.Dir == "" {
		return gamedata.Default()
	}
	return gamedata.Load(a.cfg.Data.Dir)
}

// loadRegistry loads the data and allocates its ids.
func (a *app) loadRegistry() (*gamedata.Data, *registry.Registry, error) {
	d, err := a.loadData()
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry.New(d)
	if err != nil {
		return nil, nil, err
	}
	return d, reg, nil
}

// withLedger runs fn against the configured ledger.
func (a *app) withLedger(ctx context.Context, fn func(ledger.Store) error) error {
	dsn := a.cfg.Ledger.PostgresDSN
	if dsn == "" {
		return fmt.Errorf("ledger.postgres_dsn is not configured")
	}
	store, closeFn, err := a.openLedger(ctx, dsn)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(store)
}
