// Package config holds the engine-wide configuration surface, loaded from
// a JSON5-tolerant file plus an environment variable overlay.
package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Config is the root configuration for the OIL engine process. It never
// holds per-session state (sessions own their own Snapshot Store, Resolver,
// and checkpoint store); it only holds shared defaults every session
// is constructed from.
type Config struct {
	Retry        RetryConfig        `json:"retry"`
	Timeouts     TimeoutsConfig     `json:"timeouts"`
	Loop         LoopConfig         `json:"loop"`
	Checkpoints  CheckpointsConfig  `json:"checkpoints"`
	Packs        PacksConfig        `json:"packs"`
	Observation  ObservationConfig  `json:"observation"`
	Transport    TransportConfig    `json:"transport"`
	Telemetry    TelemetryConfig    `json:"telemetry,omitempty"`

	mu sync.RWMutex
}

// RetryConfig mirrors the Intent Engine's per-step retry policy: up to N
// attempts with exponential backoff (base 200ms, factor 2, jitter 25%).
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	Factor      float64       `json:"factor"`
	Jitter      float64       `json:"jitter"`
}

// TimeoutsConfig mirrors suspension-point timeouts.
type TimeoutsConfig struct {
	Dispatch time.Duration `json:"dispatch"` // default 30s
	Eval     time.Duration `json:"eval"`     // default 10s (scanner JS evaluation)
	Wait     time.Duration `json:"wait"`     // default 5s
}

// LoopConfig mirrors the Loop step's hard bound: iterations <= max
// always holds.
type LoopConfig struct {
	DefaultMax int `json:"default_max"`
}

// CheckpointsConfig selects which CheckpointStore backend a session wires
// up: sqlite, postgres, or the default "memory", which wires no store at
// all (checkpoints are not saved and Resume returns an error).
type CheckpointsConfig struct {
	Backend     string `json:"backend"` // "memory" | "sqlite" | "postgres"
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"-"` // env OILENGINE_POSTGRES_DSN only, never persisted
}

// PacksConfig names the directories the registry loader watches for intent packs.
type PacksConfig struct {
	Dirs          []string `json:"dirs,omitempty"`
	ForceOnReload bool     `json:"force_on_reload,omitempty"`
}

// ObservationConfig tunes the text-block observation formatter.
type ObservationConfig struct {
	MaxTextWidth int  `json:"max_text_width"` // truncation width for element text columns
	ShowHidden   bool `json:"show_hidden"`
}

// TransportConfig configures the one concrete Backend oilctl dials by
// default: the WebSocket extension transport.
type TransportConfig struct {
	WebSocketURL string        `json:"websocket_url,omitempty"`
	DialTimeout  time.Duration `json:"dial_timeout"`
}

// TelemetryConfig configures the optional OTLP trace exporter (internal/tracing).
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   200 * time.Millisecond,
			Factor:      2,
			Jitter:      0.25,
		},
		Timeouts: TimeoutsConfig{
			Dispatch: 30 * time.Second,
			Eval:     10 * time.Second,
			Wait:     5 * time.Second,
		},
		Loop: LoopConfig{DefaultMax: 50},
		Checkpoints: CheckpointsConfig{
			Backend:    "memory",
			SQLitePath: "~/.oilengine/checkpoints.db",
		},
		Packs: PacksConfig{
			Dirs: []string{"~/.oilengine/packs"},
		},
		Observation: ObservationConfig{
			MaxTextWidth: 40,
		},
		Transport: TransportConfig{
			DialTimeout: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "oilengine",
		},
	}
}

// Hash returns a short, deterministic fingerprint of the config, useful for
// detecting whether a reload actually changed anything.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}
