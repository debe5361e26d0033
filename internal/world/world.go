// Package world assembles one player's world: ids and groups, the region
// graph, event conversion for vanilla shards and the balanced item pool.
//
// Stages run strictly in order and the first failure aborts the build. Each
// stage gets its own trace span and duration sample.
package world

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/kirbyam/internal/gamedata"
	"github.com/MrWong99/kirbyam/internal/idalloc"
	"github.com/MrWong99/kirbyam/internal/observe"
	"github.com/MrWong99/kirbyam/internal/patch"
	"github.com/MrWong99/kirbyam/internal/pool"
	"github.com/MrWong99/kirbyam/internal/registry"
	"github.com/MrWong99/kirbyam/internal/worldgraph"
)

// shardTag is the item tag that marks Mirror Shards.
const shardTag = "shard"

// World is the finished generation state of one player.
type World struct {
	Player  int
	Name    string
	Options Options

	Data     *gamedata.Data
	Registry *registry.Registry
	Graph    *worldgraph.Graph

	// Pool holds one item per fillable location.
	Pool []*worldgraph.Item

	// LocalItems names items that must be placed in this player's game.
	LocalItems []string

	// Auth is the 16-byte token the client presents to the server.
	Auth []byte
}

// Option configures [Build] and [Generate].
type Option func(*builder)

// WithMetrics records build metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(b *builder) { b.metrics = m }
}

// WithEntropy draws auth tokens from r instead of crypto/rand.
func WithEntropy(r io.Reader) Option {
	return func(b *builder) { b.entropy = r }
}

type builder struct {
	metrics *observe.Metrics
	entropy io.Reader
}

func newBuilder(opts []Option) *builder {
	b := &builder{}
	for _, o := range opts {
		o(b)
	}
	if b.metrics == nil {
		b.metrics = observe.DefaultMetrics()
	}
	if b.entropy == nil {
		b.entropy = rand.Reader
	}
	return b
}

// Build runs the pipeline for one player.
func Build(ctx context.Context, d *gamedata.Data, ps PlayerSettings, opts ...Option) (*World, error) {
	return newBuilder(opts).build(ctx, d, ps)
}

func (b *builder) build(ctx context.Context, d *gamedata.Data, ps PlayerSettings) (w *World, err error) {
	ctx = observe.WithPlayer(ctx, ps.Player, ps.Name)
	ctx, span := observe.StartSpan(ctx, "world.Build")
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		b.metrics.RecordWorldBuilt(ctx, status)
		observe.EndSpan(span, err)
	}()

	mode, err := ParseShardMode(string(ps.Options.Shards))
	if err != nil {
		return nil, fmt.Errorf("world: player %d (%s): %w", ps.Player, ps.Name, err)
	}
	w = &World{Player: ps.Player, Name: ps.Name, Options: ps.Options, Data: d}
	w.Options.Shards = mode
	if w.Options.Goal == "" && len(d.Goals) > 0 {
		w.Options.Goal = d.Goals[0].Key
	}

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"registry", w.buildRegistry(b)},
		{"graph", w.buildGraph},
		{"events", w.convertEvents},
		{"pool", w.buildPool(b)},
		{"auth", w.newAuth(b)},
	}
	for _, s := range stages {
		if err := b.stage(ctx, s.name, s.run); err != nil {
			return nil, fmt.Errorf("world: player %d (%s): %s: %w", ps.Player, ps.Name, s.name, err)
		}
	}

	if mode == ShardsShuffle {
		w.LocalItems = w.Registry.ItemGroups()[shardTag]
	}
	observe.Logger(ctx).Info("world built",
		"shards", string(mode),
		"pool", len(w.Pool),
	)
	return w, nil
}

func (b *builder) stage(ctx context.Context, name string, run func(context.Context) error) error {
	ctx, span := observe.StartSpan(ctx, "world."+name)
	start := time.Now()
	err := run(ctx)
	b.metrics.RecordStage(ctx, name, time.Since(start))
	observe.EndSpan(span, err)
	return err
}

func (w *World) buildRegistry(b *builder) func(context.Context) error {
	return func(ctx context.Context) error {
		reg, err := registry.New(w.Data)
		if err != nil {
			var collision *idalloc.CollisionError
			if errors.As(err, &collision) {
				b.metrics.IDCollisions.Add(ctx, 1)
			}
			return err
		}
		b.metrics.RecordIDs(ctx, idalloc.ItemNamespace, len(w.Data.Items))
		b.metrics.RecordIDs(ctx, idalloc.LocationNamespace, len(w.Data.Locations))
		w.Registry = reg
		return nil
	}
}

func (w *World) buildGraph(context.Context) error {
	g, err := worldgraph.Build(w.Data, w.Registry, w.Player, worldgraph.BuildOptions{
		Start: w.Options.StartRegion,
		Goal:  w.Options.Goal,
	})
	if err != nil {
		return err
	}
	w.Graph = g
	return nil
}

// convertEvents locks every shard location to its own shard when shards
// are vanilla. A shard location without a default item stays fillable;
// one whose default item is not in the dataset is an error.
func (w *World) convertEvents(ctx context.Context) error {
	if w.Options.Shards != ShardsVanilla {
		return nil
	}
	for _, loc := range w.Graph.Locations() {
		if loc.Category != gamedata.CategoryShard || loc.IsEvent() {
			continue
		}
		if loc.DefaultItem == "" {
			observe.Logger(ctx).Warn("shard location has no default item, leaving it randomized",
				"location", loc.Name)
			continue
		}
		row, ok := w.Data.Item(loc.DefaultItem)
		if !ok {
			return &worldgraph.ReferenceError{Kind: "item", From: loc.Name, Key: loc.DefaultItem}
		}
		if err := loc.ConvertToEvent(worldgraph.NewEvent(row.Name, w.Player)); err != nil {
			return fmt.Errorf("location %q: %w", loc.Name, err)
		}
	}
	return nil
}

func (w *World) buildPool(b *builder) func(context.Context) error {
	return func(ctx context.Context) error {
		fillable := w.Graph.FillableLocations()

		var events []*worldgraph.Location
		for _, l := range w.Graph.Locations() {
			if l.IsEvent() && l.DefaultItem != "" {
				events = append(events, l)
			}
		}
		rows := pool.Candidates(w.Data.Items, events)
		candidates := make([]*worldgraph.Item, len(rows))
		for i, r := range rows {
			candidates[i] = w.newItem(r)
		}

		var padding func() *worldgraph.Item
		if len(fillable) > len(candidates) {
			row, err := pool.ResolvePadding(w.Data.Items)
			if err != nil {
				return err
			}
			padding = func() *worldgraph.Item { return w.newItem(row) }
		}

		items, err := pool.Build(fillable, candidates, padding)
		if err != nil {
			return err
		}
		if n := len(items) - len(candidates); n > 0 {
			b.metrics.PoolPadding.Add(ctx, int64(n))
		}
		w.Pool = items
		return nil
	}
}

func (w *World) newAuth(b *builder) func(context.Context) error {
	return func(context.Context) error {
		u, err := uuid.NewRandomFromReader(b.entropy)
		if err != nil {
			return fmt.Errorf("generate auth token: %w", err)
		}
		w.Auth = append([]byte(nil), u[:]...)
		return nil
	}
}

func (w *World) newItem(row gamedata.ItemRow) *worldgraph.Item {
	it := &worldgraph.Item{
		Name:           row.Name,
		Key:            row.Key,
		Classification: row.Classification,
		Player:         w.Player,
	}
	if id, ok := w.Registry.ItemIDByKey(row.Key); ok {
		it.ID = &id
	}
	return it
}

// ConnectName is the base64 form of the auth token, which the server maps
// back to the player name.
func (w *World) ConnectName() string {
	return base64.StdEncoding.EncodeToString(w.Auth)
}

// SlotData is sent to the client on connect.
func (w *World) SlotData() map[string]any {
	goal := w.Graph.Goal()
	return map[string]any{
		"goal":           w.Options.Goal,
		"goal_location":  goal.Name,
		"shards":         string(w.Options.Shards),
		"schema_version": w.Data.SchemaVersion,
	}
}

// Tokens returns the ROM writes for this player. The auth token is only
// written when authAddr is non-zero.
func (w *World) Tokens(authAddr uint32) patch.Tokens {
	var t patch.Tokens
	if authAddr != 0 {
		t.Write(authAddr, w.Auth)
	}
	return t
}

// WritePatch writes this player's patch container to out.
func (w *World) WritePatch(out io.Writer, authAddr uint32) error {
	return patch.Write(out, patch.NewManifest(w.Player, w.Name), w.Tokens(authAddr))
}
