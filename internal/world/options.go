package world

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownShardMode is returned for a shard mode outside the three known ones.
var ErrUnknownShardMode = errors.New("unknown shard mode")

// ShardMode selects how Mirror Shard locations take part in generation.
type ShardMode string

const (
	// ShardsVanilla locks every shard location to its own shard.
	ShardsVanilla ShardMode = "vanilla"

	// ShardsShuffle pools the shards but keeps them in this player's game.
	ShardsShuffle ShardMode = "shuffle"

	// ShardsRandomize pools the shards across the whole multiworld.
	ShardsRandomize ShardMode = "randomize"
)

// ParseShardMode normalises s. An empty string yields [ShardsVanilla].
func ParseShardMode(s string) (ShardMode, error) {
	switch m := ShardMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ShardsVanilla, nil
	case ShardsVanilla, ShardsShuffle, ShardsRandomize:
		return m, nil
	default:
		return "", fmt.Errorf("world: %w %q (want vanilla, shuffle or randomize)", ErrUnknownShardMode, s)
	}
}

// Options are the per-player choices.
type Options struct {
	// Goal is a goal key. Empty uses the first goal.
	Goal string

	Shards ShardMode

	// StartRegion is a region key. Empty uses the data's start region.
	StartRegion string
}

// PlayerSettings identifies one player and their options.
type PlayerSettings struct {
	Player  int
	Name    string
	Options Options
}
