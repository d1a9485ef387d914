package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file (comments, trailing commas, bare
// keys), then overlays environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// UnmarshalJSON also accepts base_delay as a duration string such as "500ms".
func (r *RetryConfig) UnmarshalJSON(data []byte) error {
	type Plain RetryConfig
	aux := struct {
		*Plain
		BaseDelay any `json:"base_delay"`
	}{Plain: (*Plain)(r)}
	err := json5.Unmarshal(data, &aux)
	if s, ok := aux.BaseDelay.(string); ok && err == nil {
		r.BaseDelay, err = time.ParseDuration(s)
	} else if f, ok := aux.BaseDelay.(float64); ok {
		r.BaseDelay = time.Duration(f)
	}
	return err
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	envInt("OILENGINE_RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	envDuration("OILENGINE_RETRY_BASE_DELAY", &c.Retry.BaseDelay)

	envDuration("OILENGINE_TIMEOUT_DISPATCH", &c.Timeouts.Dispatch)
	envDuration("OILENGINE_TIMEOUT_EVAL", &c.Timeouts.Eval)
	envDuration("OILENGINE_TIMEOUT_WAIT", &c.Timeouts.Wait)

	envInt("OILENGINE_LOOP_DEFAULT_MAX", &c.Loop.DefaultMax)

	envStr("OILENGINE_CHECKPOINTS_BACKEND", &c.Checkpoints.Backend)
	envStr("OILENGINE_CHECKPOINTS_SQLITE_PATH", &c.Checkpoints.SQLitePath)
	envStr("OILENGINE_POSTGRES_DSN", &c.Checkpoints.PostgresDSN)

	if v := os.Getenv("OILENGINE_PACK_DIRS"); v != "" {
		c.Packs.Dirs = strings.Split(v, ",")
	}
	envBool("OILENGINE_PACK_FORCE_RELOAD", &c.Packs.ForceOnReload)

	envInt("OILENGINE_OBSERVATION_MAX_TEXT_WIDTH", &c.Observation.MaxTextWidth)
	envBool("OILENGINE_OBSERVATION_SHOW_HIDDEN", &c.Observation.ShowHidden)

	envStr("OILENGINE_WEBSOCKET_URL", &c.Transport.WebSocketURL)
	envDuration("OILENGINE_DIAL_TIMEOUT", &c.Transport.DialTimeout)

	envBool("OILENGINE_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envStr("OILENGINE_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("OILENGINE_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	envBool("OILENGINE_TELEMETRY_INSECURE", &c.Telemetry.Insecure)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
