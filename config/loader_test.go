package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Strings(t *testing.T) {
	t.Setenv("HONEYRELAY_MODE", "mirror")
	t.Setenv("HONEYRELAY_PROXY", "10.0.0.5:22")
	t.Setenv("HONEYRELAY_MIRROR", "10.0.0.9:22")
	t.Setenv("HONEYRELAY_LOOP_GUARD", "all")
	t.Setenv("HONEYRELAY_LISTEN_ADDR", "0.0.0.0")

	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.Mode != "mirror" || cfg.Proxy != "10.0.0.5:22" || cfg.Mirror != "10.0.0.9:22" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.LoopGuard != "all" || cfg.ListenAddr != "0.0.0.0" {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoadFromEnv_Numbers(t *testing.T) {
	t.Setenv("HONEYRELAY_PORT", "2222")
	t.Setenv("HONEYRELAY_TIMEOUT", "30")
	t.Setenv("HONEYRELAY_MIRROR_COOLDOWN", "10")
	t.Setenv("HONEYRELAY_VERBOSE", "3")

	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.ListenPort != 2222 {
		t.Errorf("ListenPort = %d, want 2222", cfg.ListenPort)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s", cfg.Timeout)
	}
	if cfg.MirrorCooldown != 10*time.Second {
		t.Errorf("MirrorCooldown = %s", cfg.MirrorCooldown)
	}
	if cfg.Verbose != 3 {
		t.Errorf("Verbose = %d", cfg.Verbose)
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "TRUE", "Yes"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("HONEYRELAY_LISTEN", v)
			t.Setenv("HONEYRELAY_KEEP_OPEN", v)
			cfg := &Config{}
			LoadFromEnv(cfg)
			if !cfg.Listen || !cfg.KeepOpen {
				t.Errorf("Listen=%v KeepOpen=%v", cfg.Listen, cfg.KeepOpen)
			}
		})
	}
}

// TestLoadFromEnv_Invalid verifies malformed numbers are ignored.
func TestLoadFromEnv_Invalid(t *testing.T) {
	t.Setenv("HONEYRELAY_PORT", "ssh")
	t.Setenv("HONEYRELAY_LISTEN", "nope")
	cfg := &Config{ListenPort: 80}
	LoadFromEnv(cfg)
	if cfg.ListenPort != 80 || cfg.Listen {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	data := `
listen: true
port: 2222
keep_open: true
timeout: 90s
proxy: 10.0.0.5:22
mirror: 10.0.0.9:22
loop_guard: all
source: 10.0.0.1
mirror_max_failures: 3
mirror_cooldown: 1m
verbose: 2
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{}
	if err := LoadFile(path, cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	want := Config{
		Listen: true, ListenPort: 2222, KeepOpen: true, Timeout: 90 * time.Second,
		Proxy: "10.0.0.5:22", Mirror: "10.0.0.9:22", LoopGuard: "all", SourceIP: "10.0.0.1",
		MirrorMaxFailures: 3, MirrorCooldown: time.Minute, Verbose: 2,
	}
	if *cfg != want {
		t.Errorf("got  %+v\nwant %+v", *cfg, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("file config should validate: %v", err)
	}
}

// TestLoadFile_Partial verifies absent keys leave existing values alone.
func TestLoadFile_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte("mirror: 10.0.0.9:22\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Listen: true, ListenPort: 8080, Proxy: "10.0.0.5:80"}
	if err := LoadFile(path, cfg); err != nil {
		t.Fatal(err)
	}
	if !cfg.Listen || cfg.ListenPort != 8080 || cfg.Proxy != "10.0.0.5:80" || cfg.Mirror != "10.0.0.9:22" {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &Config{}); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [not a number"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := LoadFile(path, &Config{}); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
