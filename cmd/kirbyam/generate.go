package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/kirbyam/internal/idalloc"
	"github.com/MrWong99/kirbyam/internal/ledger"
	"github.com/MrWong99/kirbyam/internal/observe"
	"github.com/MrWong99/kirbyam/internal/patch"
	"github.com/MrWong99/kirbyam/internal/world"
)

// SpoilerFile is written next to the patches.
const SpoilerFile = "spoiler.json"

// spoilerDoc is the content of [SpoilerFile].
type spoilerDoc struct {
	Generated    time.Time         `json:"generated"`
	ConnectNames map[string]string `json:"connect_names"`
	Players      []world.Spoiler   `json:"players"`
}

func newGenerateCommand(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build every configured player's world and write patches",
		Long: `Build the world of every player listed in the configuration and write
one patch container per player plus a spoiler summary to --out.

When a ledger is configured the ids are verified against it first and
generation refuses to run on drift.

Examples:
  kirbyam generate --config kirbyam.yaml --out ./output`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.generate(cmd.Context(), cmd.OutOrStdout(), outDir)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "output", "directory for patches and the spoiler")
	return cmd
}

func (a *app) generate(ctx context.Context, out io.Writer, outDir string) (err error) {
	ctx, span := observe.StartSpan(ctx, "kirbyam.generate")
	defer func() { observe.EndSpan(span, err) }()

	if len(a.cfg.Players) == 0 {
		return errors.New("generate: no players configured")
	}
	d, reg, err := a.loadRegistry()
	if err != nil {
		return err
	}

	if a.cfg.Ledger.PostgresDSN != "" {
		if err := a.withLedger(ctx, func(s ledger.Store) error {
			return errors.Join(
				ledger.Verify(ctx, s, idalloc.ItemNamespace, reg.ItemKeyToID()),
				ledger.Verify(ctx, s, idalloc.LocationNamespace, reg.LocationKeyToID()),
			)
		}); err != nil {
			return fmt.Errorf("generate: %w", err)
		}
	}

	worlds, err := world.Generate(ctx, d, a.cfg.Settings())
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	doc := spoilerDoc{
		Generated:    time.Now().UTC(),
		ConnectNames: world.ConnectNames(worlds),
	}
	for _, w := range worlds {
		path := filepath.Join(outDir, patchFileName(w.Player, w.Name))
		if err := writePatch(path, w, a.cfg.Patch.AuthTokenAddress); err != nil {
			return err
		}
		doc.Players = append(doc.Players, w.Spoiler())
		fmt.Fprintf(out, "player %d (%s): %s\n", w.Player, w.Name, path)
		observe.Logger(ctx).Debug("patch written", "player", w.Player, "path", path)
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("generate: encode spoiler: %w", err)
	}
	spoiler := filepath.Join(outDir, SpoilerFile)
	if err := os.WriteFile(spoiler, raw, 0o644); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	slog.Info("generation complete", "players", len(worlds), "out", outDir)
	return nil
}

func writePatch(path string, w *world.World, authAddr uint32) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("generate: close %s: %w", path, cerr)
		}
	}()
	if err := w.WritePatch(f, authAddr); err != nil {
		return fmt.Errorf("generate: player %d: %w", w.Player, err)
	}
	return nil
}

// patchFileName is AP_P<n>_<name> with path separators and spaces replaced.
func patchFileName(player int, name string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf("AP_P%d_%s%s", player, safe, patch.FileEnding)
}
