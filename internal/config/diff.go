package config

import "slices"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	DataDirChanged bool

	PlayersChanged bool
	PlayerChanges  []PlayerDiff // sorted by name

	// RestartRequired is set when a field that cannot be hot-applied
	// changed: the listen address, the ledger or the bridge.
	RestartRequired bool
}

// PlayerDiff describes what changed for a single player between two configs.
type PlayerDiff struct {
	Name           string
	Added          bool
	Removed        bool
	NumberChanged  bool
	OptionsChanged bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.DataDirChanged = old.Data.Dir != new.Data.Dir
	d.RestartRequired = old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Ledger != new.Ledger ||
		old.Bridge != new.Bridge

	oldPlayers := indexPlayers(old.Players)
	newPlayers := indexPlayers(new.Players)

	for name, o := range oldPlayers {
		n, exists := newPlayers[name]
		if !exists {
			d.PlayerChanges = append(d.PlayerChanges, PlayerDiff{Name: name, Removed: true})
			continue
		}
		pd := PlayerDiff{
			Name:          name,
			NumberChanged: o.number != n.number,
			OptionsChanged: o.cfg.Goal != n.cfg.Goal ||
				o.cfg.Shards != n.cfg.Shards ||
				o.cfg.StartRegion != n.cfg.StartRegion,
		}
		if pd.NumberChanged || pd.OptionsChanged {
			d.PlayerChanges = append(d.PlayerChanges, pd)
		}
	}
	for name := range newPlayers {
		if _, exists := oldPlayers[name]; !exists {
			d.PlayerChanges = append(d.PlayerChanges, PlayerDiff{Name: name, Added: true})
		}
	}

	slices.SortFunc(d.PlayerChanges, func(a, b PlayerDiff) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	d.PlayersChanged = len(d.PlayerChanges) > 0
	return d
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.DataDirChanged && !d.PlayersChanged && !d.RestartRequired
}

type indexedPlayer struct {
	cfg    PlayerConfig
	number int
}

func indexPlayers(players []PlayerConfig) map[string]indexedPlayer {
	out := make(map[string]indexedPlayer, len(players))
	for i, p := range players {
		out[p.Name] = indexedPlayer{cfg: p, number: p.number(i)}
	}
	return out
}
