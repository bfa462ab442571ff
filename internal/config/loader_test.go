package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `
addr: ":9999"
idle_timeout_seconds: 120
preload: false
engine:
  mode: remote
  worker_url: http://gpu-box:9000
  worker_args: ["-m", "tts_worker"]
voices:
  dir: /srv/voices
cors:
  enabled: true
  origins: ["https://a.example"]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.IdleTimeoutSeconds != 120 || cfg.Preload {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Engine.Mode != "remote" || cfg.Engine.WorkerURL != "http://gpu-box:9000" || len(cfg.Engine.WorkerArgs) != 2 {
		t.Fatalf("unexpected engine: %+v", cfg.Engine)
	}
	if cfg.Voices.Dir != "/srv/voices" || !cfg.CORS.Enabled || cfg.CORS.Origins[0] != "https://a.example" {
		t.Fatalf("unexpected voices/cors: %+v %+v", cfg.Voices, cfg.CORS)
	}
	// untouched keys keep defaults
	if cfg.Engine.Device != "cuda" || cfg.Voices.CustomDir != "./custom_voices" || !cfg.MCP.OffloadAfterCall {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","monitor_interval_ms":500,"engine":{"device":"cpu"},"mcp":{"http_enabled":true}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.MonitorIntervalMS != 500 || cfg.Engine.Device != "cpu" || !cfg.MCP.HTTPEnabled {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nidle_timeout_seconds=-1\n[engine]\nport_start=30000\nport_end=30010\n[voices]\ndefault=\"vctk/p225.wav\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.IdleTimeoutSeconds != -1 || cfg.Engine.PortStart != 30000 || cfg.Voices.Default != "vctk/p225.wav" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	if _, err := Load(writeTempFile(t, d, "cfg.txt", "not supported")); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
	if _, err := Load(writeTempFile(t, d, "bad.yaml", "addr: [unclosed\n")); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
	if _, err := Load(writeTempFile(t, d, "bad.json", `{ "addr": ":8080", "voices": }`)); err == nil {
		t.Fatalf("expected JSON unmarshal error")
	}
	if _, err := Load(writeTempFile(t, d, "bad.toml", "addr=:8080\nvoices\n")); err == nil {
		t.Fatalf("expected TOML unmarshal error")
	}
}

func TestIdleTimeoutResolution(t *testing.T) {
	cases := map[int]time.Duration{0: 60 * time.Second, -1: 0, 5: 5 * time.Second}
	for in, want := range cases {
		if got := (Config{IdleTimeoutSeconds: in}).IdleTimeout(); got != want {
			t.Fatalf("IdleTimeout(%d)=%v want %v", in, got, want)
		}
	}
	if got := (Config{MonitorIntervalMS: 250}).MonitorInterval(); got != 250*time.Millisecond {
		t.Fatalf("MonitorInterval=%v", got)
	}
}

func TestValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	bad := []func(*Config){
		func(c *Config) { c.Engine.Mode = "carrier-pigeon" },
		func(c *Config) { c.Engine.Mode = "remote"; c.Engine.WorkerURL = "" },
		func(c *Config) { c.Engine.WorkerBin = " " },
		func(c *Config) { c.Engine.PortStart, c.Engine.PortEnd = 10, 5 },
		func(c *Config) { c.LogFormat = "xml" },
	}
	for i, mut := range bad {
		c := Defaults()
		mut(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
