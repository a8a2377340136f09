// Package config loads the player configuration from TOML files layered
// over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Player PlayerConfig `koanf:"player"`
	Log    LogConfig    `koanf:"log"`
	API    APIConfig    `koanf:"api"`
	Clock  ClockConfig  `koanf:"clock"`
	VLC    VLCConfig    `koanf:"vlc"`
}

// PlayerConfig describes what is played and where.
type PlayerConfig struct {
	PlaylistDir  string `koanf:"playlist_dir"`
	Template     string `koanf:"template"` // built-in layout name or path to a JSON layout
	ScreenWidth  int    `koanf:"screen_width"`
	ScreenHeight int    `koanf:"screen_height"`
	Looping      bool   `koanf:"looping"`
	Engine       string `koanf:"engine"`  // "vlc", "clock" or "" for the platform default
	EnvFile      string `koanf:"env_file"` // optional .env with the engine's environment
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
	File  string `koanf:"file"`
}

// APIConfig is the player identity reported with every heartbeat.
type APIConfig struct {
	ID                   string `koanf:"id"`
	Key                  string `koanf:"key"`
	Name                 string `koanf:"name"`
	Endpoint             string `koanf:"endpoint"`
	HeartbeatIntervalSec int    `koanf:"heartbeat_interval_sec"`
}

// Registered reports whether heartbeats can be sent.
func (a APIConfig) Registered() bool {
	return a.ID != "" && a.Endpoint != ""
}

// HeartbeatInterval returns the interval, 60s when unset.
func (a APIConfig) HeartbeatInterval() time.Duration {
	if a.HeartbeatIntervalSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(a.HeartbeatIntervalSec) * time.Second
}

// ClockConfig tunes the clock engine used by dev builds.
type ClockConfig struct {
	DefaultDurationSec int `koanf:"default_duration_sec"`
	PrepareDelayMs     int `koanf:"prepare_delay_ms"`
}

// VLCConfig holds extra libVLC flags appended to the defaults.
type VLCConfig struct {
	Args []string `koanf:"args"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Player: PlayerConfig{
			PlaylistDir:  defaultPlaylistDir(),
			Template:     "fullscreen",
			ScreenWidth:  1920,
			ScreenHeight: 1080,
			Looping:      true,
		},
		Log: LogConfig{Level: "info"},
		API: APIConfig{HeartbeatIntervalSec: 60},
		Clock: ClockConfig{
			DefaultDurationSec: 10,
			PrepareDelayMs:     150,
		},
	}
}

// Load layers the existing files among paths over the defaults, the last
// one winning. With no paths it reads DefaultPaths.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = DefaultPaths()
	}

	k := koanf.New(".")
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Player.PlaylistDir = expandPath(cfg.Player.PlaylistDir)
	cfg.Player.EnvFile = expandPath(cfg.Player.EnvFile)
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.API.Endpoint = strings.TrimSuffix(cfg.API.Endpoint, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values a file may have set wrong.
func (c *Config) Validate() error {
	if c.Player.ScreenWidth <= 0 || c.Player.ScreenHeight <= 0 {
		return fmt.Errorf("%w: screen size %dx%d", ErrInvalid, c.Player.ScreenWidth, c.Player.ScreenHeight)
	}
	switch c.Player.Engine {
	case "", "vlc", "clock":
	default:
		return fmt.Errorf("%w: unknown engine %q", ErrInvalid, c.Player.Engine)
	}
	if c.Clock.DefaultDurationSec <= 0 {
		return fmt.Errorf("%w: clock.default_duration_sec must be positive", ErrInvalid)
	}
	return nil
}

// DefaultPaths are the system-wide file and ./config.toml, in that order.
func DefaultPaths() []string {
	paths := []string{}
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/gapless-player/config.toml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gapless-player", "config.toml"))
	}
	return append(paths, "config.toml")
}

func defaultPlaylistDir() string {
	if runtime.GOOS == "windows" {
		exe, _ := os.Executable()
		return filepath.Join(filepath.Dir(exe), "playlist")
	}
	return "/playlist"
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
