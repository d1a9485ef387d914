package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("default MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Loop.DefaultMax != 50 {
		t.Fatalf("default Loop.DefaultMax = %d, want 50", cfg.Loop.DefaultMax)
	}
	if cfg.Checkpoints.Backend != "memory" {
		t.Fatalf("default Checkpoints.Backend = %q, want memory", cfg.Checkpoints.Backend)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("Retry.MaxAttempts = %d, want default 3", cfg.Retry.MaxAttempts)
	}
}

func TestLoadJSON5WithCommentsAndTrailingCommas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	body := `{
		// retry tuning
		retry: { max_attempts: 5, base_delay: "500ms", factor: 2, jitter: 0.1 },
		loop: { default_max: 10 },
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("Retry.MaxAttempts = %d, want 5", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelay != 500*time.Millisecond {
		t.Fatalf("Retry.BaseDelay = %v, want 500ms", cfg.Retry.BaseDelay)
	}
	if cfg.Loop.DefaultMax != 10 {
		t.Fatalf("Loop.DefaultMax = %d, want 10", cfg.Loop.DefaultMax)
	}
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte(`{ loop: { default_max: 10 } }`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OILENGINE_LOOP_DEFAULT_MAX", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Loop.DefaultMax != 7 {
		t.Fatalf("Loop.DefaultMax = %d, want env override 7", cfg.Loop.DefaultMax)
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandHome("~/packs"); got != home+"/packs" {
		t.Fatalf("ExpandHome = %q, want %q", got, home+"/packs")
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("ExpandHome should pass through non-tilde paths, got %q", got)
	}
}
