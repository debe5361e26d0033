// Package config provides the configuration schema and loader for the
// kirbyam commands.
package config

import (
	"github.com/MrWong99/kirbyam/internal/bridge"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Data    DataConfig     `yaml:"data"`
	Players []PlayerConfig `yaml:"players"`
	Ledger  LedgerConfig   `yaml:"ledger"`
	Bridge  BridgeConfig   `yaml:"bridge"`
	Patch   PatchConfig    `yaml:"patch"`
}

// ServerConfig holds the logging and probe server settings.
type ServerConfig struct {
	// ListenAddr serves /healthz, /readyz and /metrics when set (e.g. ":9090").
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`
}

// DataConfig selects the game data documents.
type DataConfig struct {
	// Dir holds items.yaml, locations.yaml, goals.yaml and regions.yaml.
	// Empty uses the data embedded in the binary.
	Dir string `yaml:"dir"`
}

// PlayerConfig is one player's slot in a generation run.
type PlayerConfig struct {
	// Name is the slot name. Required and unique.
	Name string `yaml:"name"`

	// Player is the slot number. Zero assigns the 1-based list position.
	Player int `yaml:"player"`

	// Goal is a goal key. Empty uses the first goal.
	Goal string `yaml:"goal"`

	// Shards is vanilla, shuffle or randomize. Empty means vanilla.
	Shards string `yaml:"shards"`

	// StartRegion is a region key. Empty uses the data's start region.
	StartRegion string `yaml:"start_region"`
}

// LedgerConfig points at the published id ledger.
type LedgerConfig struct {
	// PostgresDSN is the connection string. Empty disables ledger checks.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BridgeConfig configures the live bridge between server and game.
// ServerURL and Password are read by the connect command. PollHz and
// Addresses are reserved for the emulator link, which no command starts
// yet; they are validated so configs written for it load unchanged.
type BridgeConfig struct {
	// ServerURL is the multiworld server websocket address.
	ServerURL string `yaml:"server_url"`

	Password string `yaml:"password"`

	// PollHz is how often the game is polled. Zero uses the bridge default.
	PollHz float64 `yaml:"poll_hz"`

	// Addresses overrides the RAM layout. Zero fields keep their defaults.
	Addresses bridge.Layout `yaml:"addresses"`
}

// PatchConfig controls the per-player patch files.
type PatchConfig struct {
	// AuthTokenAddress is the ROM offset of the 16-byte auth token. Zero
	// leaves the token out of the patch.
	AuthTokenAddress uint32 `yaml:"auth_token_address"`
}
