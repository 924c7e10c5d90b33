// Package config provides centralized configuration management.
// Every knob has a default here; a config file named by ARENA_CONFIG and
// ARENA_* environment variables override them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"bomb-arena/internal/game"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// ARENA_ARENA_WIDTH or ARENA_SERVER_PORT
const EnvPrefix = "ARENA"

// ConfigFileEnv names an optional config file (json, yaml, toml, ...)
const ConfigFileEnv = "ARENA_CONFIG"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// ArenaConfig holds the simulation rules
type ArenaConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`

	CrateDensity float64 `mapstructure:"crateDensity"`

	FuseDuration      time.Duration `mapstructure:"fuseDuration"`
	ExplosionDuration time.Duration `mapstructure:"explosionDuration"`
	RespawnDelay      time.Duration `mapstructure:"respawnDelay"`
	TickInterval      time.Duration `mapstructure:"tickInterval"`

	StartFirePower    int `mapstructure:"startFirePower"`
	StartBombCapacity int `mapstructure:"startBombCapacity"`

	PowerupFireChance float64 `mapstructure:"powerupFireChance"`
	PowerupBombChance float64 `mapstructure:"powerupBombChance"`

	RefillInterval  time.Duration `mapstructure:"refillInterval"`
	RefillLowWater  float64       `mapstructure:"refillLowWater"`
	RefillHighWater float64       `mapstructure:"refillHighWater"`

	Seed int64 `mapstructure:"seed"` // 0 seeds from the clock
}

// DefaultArena returns the stock 31x25 arena ticking at 20 Hz
func DefaultArena() ArenaConfig {
	r := game.DefaultRules()
	return ArenaConfig{
		Width:             r.Width,
		Height:            r.Height,
		CrateDensity:      r.CrateDensity,
		FuseDuration:      r.FuseDuration,
		ExplosionDuration: r.ExplosionDuration,
		RespawnDelay:      r.RespawnDelay,
		TickInterval:      50 * time.Millisecond,
		StartFirePower:    r.StartFirePower,
		StartBombCapacity: r.StartBombCapacity,
		PowerupFireChance: r.PowerupFireChance,
		PowerupBombChance: r.PowerupBombChance,
		RefillInterval:    r.RefillInterval,
		RefillLowWater:    r.RefillLowWater,
		RefillHighWater:   r.RefillHighWater,
	}
}

// Rules converts the arena section into engine rules
func (a ArenaConfig) Rules(limits ResourceLimits) game.Rules {
	return game.Rules{
		Width:             a.Width,
		Height:            a.Height,
		CrateDensity:      a.CrateDensity,
		FuseDuration:      a.FuseDuration,
		ExplosionDuration: a.ExplosionDuration,
		RespawnDelay:      a.RespawnDelay,
		StartFirePower:    a.StartFirePower,
		StartBombCapacity: a.StartBombCapacity,
		PowerupFireChance: a.PowerupFireChance,
		PowerupBombChance: a.PowerupBombChance,
		RefillInterval:    a.RefillInterval,
		RefillLowWater:    a.RefillLowWater,
		RefillHighWater:   a.RefillHighWater,
		MaxActors:         limits.MaxActors,
	}
}

// =============================================================================
// GAME RESOURCE LIMITS
// =============================================================================

// ResourceLimits controls DoS protection and snapshot size
type ResourceLimits struct {
	MaxActors         int `mapstructure:"maxActors"`         // Hard cap on registered actors
	MaxSnapshotActors int `mapstructure:"maxSnapshotActors"` // Actors kept in the published snapshot
}

// DefaultLimits returns the default resource limits
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxActors:         game.DefaultLimits.MaxActors,
		MaxSnapshotActors: game.DefaultLimits.MaxSnapshotActors,
	}
}

// Game converts to the engine's limit type
func (l ResourceLimits) Game() game.ResourceLimits {
	return game.ResourceLimits{
		MaxActors:         l.MaxActors,
		MaxSnapshotActors: l.MaxSnapshotActors,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP and websocket settings
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"corsOrigins"`
	StaticDir   string   `mapstructure:"staticDir"`
	AccessLog   bool     `mapstructure:"accessLog"`

	RequestsPerSecond float64 `mapstructure:"requestsPerSecond"` // HTTP, per IP
	RequestBurst      int     `mapstructure:"requestBurst"`

	MaxConnections      int     `mapstructure:"maxConnections"`
	MaxConnectionsPerIP int     `mapstructure:"maxConnectionsPerIP"`
	IntentsPerSecond    float64 `mapstructure:"intentsPerSecond"` // per session
	IntentBurst         int     `mapstructure:"intentBurst"`
	SendBuffer          int     `mapstructure:"sendBuffer"` // queued frames per session
}

// DefaultServer returns the default server configuration
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 3000,
		CORSOrigins: []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		},
		StaticDir:           "./public",
		AccessLog:           true,
		RequestsPerSecond:   10,
		RequestBurst:        20,
		MaxConnections:      500,
		MaxConnectionsPerIP: 10,
		IntentsPerSecond:    30,
		IntentBurst:         60,
		SendBuffer:          256,
	}
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig configures the localhost debug server
type ObservabilityConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddr    string `mapstructure:"listenAddr"`
	BasicAuthUser string `mapstructure:"basicAuthUser"`
	BasicAuthPass string `mapstructure:"basicAuthPass"`
	EventLogPath  string `mapstructure:"eventLogPath"` // empty disables the journal file
}

// DefaultObservability returns safe defaults
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:      true,
		ListenAddr:   "127.0.0.1:6060",
		EventLogPath: "events.jsonl",
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration
type AppConfig struct {
	Arena         ArenaConfig         `mapstructure:"arena"`
	Server        ServerConfig        `mapstructure:"server"`
	Limits        ResourceLimits      `mapstructure:"limits"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// Default returns the configuration used when nothing is overridden
func Default() AppConfig {
	return AppConfig{
		Arena:         DefaultArena(),
		Server:        DefaultServer(),
		Limits:        DefaultLimits(),
		Observability: DefaultObservability(),
	}
}

// Load returns the complete configuration: defaults, then the ARENA_CONFIG
// file if set, then environment overrides. PORT is honored as an alias of
// ARENA_SERVER_PORT for hosting platforms that inject it.
func Load() (AppConfig, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return AppConfig{}, fmt.Errorf("bind PORT: %w", err)
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with
func (c AppConfig) Validate() error {
	a := c.Arena
	switch {
	case a.Width < 3 || a.Height < 3:
		return fmt.Errorf("%w: arena %dx%d is smaller than 3x3", ErrInvalidConfig, a.Width, a.Height)
	case a.CrateDensity < 0 || a.CrateDensity > 1:
		return fmt.Errorf("%w: crateDensity %v outside [0,1]", ErrInvalidConfig, a.CrateDensity)
	case a.PowerupFireChance < 0 || a.PowerupBombChance < 0 || a.PowerupFireChance+a.PowerupBombChance > 1:
		return fmt.Errorf("%w: powerup chances must be non-negative and sum to at most 1", ErrInvalidConfig)
	case a.RefillLowWater > a.RefillHighWater:
		return fmt.Errorf("%w: refillLowWater above refillHighWater", ErrInvalidConfig)
	case a.TickInterval <= 0 || a.FuseDuration <= 0 || a.ExplosionDuration <= 0:
		return fmt.Errorf("%w: tick, fuse and explosion durations must be positive", ErrInvalidConfig)
	case a.StartFirePower < 1 || a.StartBombCapacity < 1:
		return fmt.Errorf("%w: starting fire power and bomb capacity must be at least 1", ErrInvalidConfig)
	case c.Limits.MaxActors < 1:
		return fmt.Errorf("%w: limits.maxActors must be at least 1", ErrInvalidConfig)
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Server.Port)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func setDefaults(v *viper.Viper, d AppConfig) {
	v.SetDefault("arena.width", d.Arena.Width)
	v.SetDefault("arena.height", d.Arena.Height)
	v.SetDefault("arena.crateDensity", d.Arena.CrateDensity)
	v.SetDefault("arena.fuseDuration", d.Arena.FuseDuration)
	v.SetDefault("arena.explosionDuration", d.Arena.ExplosionDuration)
	v.SetDefault("arena.respawnDelay", d.Arena.RespawnDelay)
	v.SetDefault("arena.tickInterval", d.Arena.TickInterval)
	v.SetDefault("arena.startFirePower", d.Arena.StartFirePower)
	v.SetDefault("arena.startBombCapacity", d.Arena.StartBombCapacity)
	v.SetDefault("arena.powerupFireChance", d.Arena.PowerupFireChance)
	v.SetDefault("arena.powerupBombChance", d.Arena.PowerupBombChance)
	v.SetDefault("arena.refillInterval", d.Arena.RefillInterval)
	v.SetDefault("arena.refillLowWater", d.Arena.RefillLowWater)
	v.SetDefault("arena.refillHighWater", d.Arena.RefillHighWater)
	v.SetDefault("arena.seed", d.Arena.Seed)

	v.SetDefault("limits.maxActors", d.Limits.MaxActors)
	v.SetDefault("limits.maxSnapshotActors", d.Limits.MaxSnapshotActors)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.corsOrigins", d.Server.CORSOrigins)
	v.SetDefault("server.staticDir", d.Server.StaticDir)
	v.SetDefault("server.accessLog", d.Server.AccessLog)
	v.SetDefault("server.requestsPerSecond", d.Server.RequestsPerSecond)
	v.SetDefault("server.requestBurst", d.Server.RequestBurst)
	v.SetDefault("server.maxConnections", d.Server.MaxConnections)
	v.SetDefault("server.maxConnectionsPerIP", d.Server.MaxConnectionsPerIP)
	v.SetDefault("server.intentsPerSecond", d.Server.IntentsPerSecond)
	v.SetDefault("server.intentBurst", d.Server.IntentBurst)
	v.SetDefault("server.sendBuffer", d.Server.SendBuffer)

	v.SetDefault("observability.enabled", d.Observability.Enabled)
	v.SetDefault("observability.listenAddr", d.Observability.ListenAddr)
	v.SetDefault("observability.basicAuthUser", d.Observability.BasicAuthUser)
	v.SetDefault("observability.basicAuthPass", d.Observability.BasicAuthPass)
	v.SetDefault("observability.eventLogPath", d.Observability.EventLogPath)
}
