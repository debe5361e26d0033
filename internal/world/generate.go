package world

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/kirbyam/internal/gamedata"
)

// Generate builds every player's world concurrently. Player numbers and
// names must be unique. The first failure cancels the remaining builds and
// is returned; on success the worlds are in the order of players.
//
// The entropy reader passed with [WithEntropy] must be safe for concurrent
// use.
func Generate(ctx context.Context, d *gamedata.Data, players []PlayerSettings, opts ...Option) ([]*World, error) {
	if len(players) == 0 {
		return nil, fmt.Errorf("world: no players to generate")
	}
	numbers := make(map[int]bool, len(players))
	names := make(map[string]bool, len(players))
	for _, p := range players {
		if numbers[p.Player] {
			return nil, fmt.Errorf("world: duplicate player number %d", p.Player)
		}
		if names[p.Name] {
			return nil, fmt.Errorf("world: duplicate player name %q", p.Name)
		}
		numbers[p.Player], names[p.Name] = true, true
	}

	b := newBuilder(opts)
	worlds := make([]*World, len(players))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range players {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			w, err := b.build(egCtx, d, p)
			if err != nil {
				return err
			}
			worlds[i] = w
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return worlds, nil
}

// ConnectNames maps every world's connect name to its player name.
func ConnectNames(worlds []*World) map[string]string {
	out := make(map[string]string, len(worlds))
	for _, w := range worlds {
		out[w.ConnectName()] = w.Name
	}
	return out
}
