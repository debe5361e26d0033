package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/kirbyam/internal/world"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Environment variables in the file are expanded before decoding.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Data.Dir != "" {
		if info, err := os.Stat(cfg.Data.Dir); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Errorf("data.dir %q is not a readable directory", cfg.Data.Dir))
		}
	}

	namesSeen := make(map[string]int, len(cfg.Players))
	numbersSeen := make(map[int]int, len(cfg.Players))
	for i, p := range cfg.Players {
		prefix := fmt.Sprintf("players[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[p.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of players[%d]", prefix, p.Name, prev))
			}
			namesSeen[p.Name] = i
		}
		if p.Player < 0 {
			errs = append(errs, fmt.Errorf("%s.player %d must be positive", prefix, p.Player))
		}
		num := p.number(i)
		if prev, ok := numbersSeen[num]; ok {
			errs = append(errs, fmt.Errorf("%s.player %d is a duplicate of players[%d]", prefix, num, prev))
		}
		numbersSeen[num] = i
		if _, err := world.ParseShardMode(p.Shards); err != nil {
			errs = append(errs, fmt.Errorf("%s.shards %q is invalid; valid values: vanilla, shuffle, randomize", prefix, p.Shards))
		}
	}

	if cfg.Bridge.PollHz < 0 {
		errs = append(errs, fmt.Errorf("bridge.poll_hz %g must not be negative", cfg.Bridge.PollHz))
	}
	if u := cfg.Bridge.ServerURL; u != "" && !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
		errs = append(errs, fmt.Errorf("bridge.server_url %q must start with ws:// or wss://", u))
	}

	if cfg.Patch.AuthTokenAddress == 0 && len(cfg.Players) > 0 {
		slog.Warn("patch.auth_token_address is not set; patches will not carry the auth token")
	}

	return errors.Join(errs...)
}

func (p PlayerConfig) number(i int) int {
	if p.Player > 0 {
		return p.Player
	}
	return i + 1
}

// Settings converts the player list into world build settings. It assumes
// cfg passed [Validate].
func (cfg *Config) Settings() []world.PlayerSettings {
	out := make([]world.PlayerSettings, len(cfg.Players))
	for i, p := range cfg.Players {
		mode, _ := world.ParseShardMode(p.Shards)
		out[i] = world.PlayerSettings{
			Player: p.number(i),
			Name:   p.Name,
			Options: world.Options{
				Goal:        p.Goal,
				Shards:      mode,
				StartRegion: p.StartRegion,
			},
		}
	}
	return out
}
