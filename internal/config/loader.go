package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
	// IdleTimeoutSeconds: 0 means the default (60s), negative disables eviction.
	IdleTimeoutSeconds int   `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds" toml:"idle_timeout_seconds"`
	MonitorIntervalMS  int   `json:"monitor_interval_ms" yaml:"monitor_interval_ms" toml:"monitor_interval_ms"`
	Preload            bool  `json:"preload" yaml:"preload" toml:"preload"`
	MaxUploadBytes     int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" toml:"max_upload_bytes"`

	Engine EngineConfig `json:"engine" yaml:"engine" toml:"engine"`
	Voices VoicesConfig `json:"voices" yaml:"voices" toml:"voices"`
	CORS   CORSConfig   `json:"cors" yaml:"cors" toml:"cors"`
	MCP    MCPConfig    `json:"mcp" yaml:"mcp" toml:"mcp"`
}

// EngineConfig selects and tunes the speech worker.
type EngineConfig struct {
	Mode                string   `json:"mode" yaml:"mode" toml:"mode"`
	WorkerBin           string   `json:"worker_bin" yaml:"worker_bin" toml:"worker_bin"`
	WorkerArgs          []string `json:"worker_args" yaml:"worker_args" toml:"worker_args"`
	WorkerURL           string   `json:"worker_url" yaml:"worker_url" toml:"worker_url"`
	Host                string   `json:"host" yaml:"host" toml:"host"`
	PortStart           int      `json:"port_start" yaml:"port_start" toml:"port_start"`
	PortEnd             int      `json:"port_end" yaml:"port_end" toml:"port_end"`
	ReadyTimeoutSeconds int      `json:"ready_timeout_seconds" yaml:"ready_timeout_seconds" toml:"ready_timeout_seconds"`
	Device              string   `json:"device" yaml:"device" toml:"device"`
	HFRepo              string   `json:"hf_repo" yaml:"hf_repo" toml:"hf_repo"`
	VoiceRepo           string   `json:"voice_repo" yaml:"voice_repo" toml:"voice_repo"`
}

type VoicesConfig struct {
	Dir       string `json:"dir" yaml:"dir" toml:"dir"`
	CustomDir string `json:"custom_dir" yaml:"custom_dir" toml:"custom_dir"`
	Default   string `json:"default" yaml:"default" toml:"default"`
}

type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

type MCPConfig struct {
	HTTPEnabled      bool `json:"http_enabled" yaml:"http_enabled" toml:"http_enabled"`
	OffloadAfterCall bool `json:"offload_after_call" yaml:"offload_after_call" toml:"offload_after_call"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Addr:              ":8900",
		LogLevel:          "info",
		LogFormat:         "json",
		MonitorIntervalMS: 10000,
		Preload:           true,
		MaxUploadBytes:    20 << 20,
		Engine: EngineConfig{
			Mode:                "spawn",
			WorkerBin:           "ttsd-worker",
			Host:                "127.0.0.1",
			ReadyTimeoutSeconds: 300,
			Device:              "cuda",
			HFRepo:              "kyutai/tts-1.6b-en_fr",
			VoiceRepo:           "kyutai/tts-voices",
		},
		Voices: VoicesConfig{
			CustomDir: "./custom_voices",
			Default:   "expresso/ex03-ex01_happy_001_channel1_334s.wav",
		},
		CORS: CORSConfig{
			Methods: []string{"GET", "POST", "OPTIONS"},
		},
		MCP: MCPConfig{OffloadAfterCall: true},
	}
}

// Load reads a configuration file based on its extension on top of
// Defaults. Keys absent from the file keep their default.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
