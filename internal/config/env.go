package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// ApplyEnv overlays environment variables onto cfg. lookup defaults to
// os.LookupEnv.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		cfg.Addr = ":" + strings.TrimSpace(v)
	}
	str("TTSD_ADDR", &cfg.Addr)
	str("TTSD_LOG_LEVEL", &cfg.LogLevel)
	if err := num("GPU_IDLE_TIMEOUT", &cfg.IdleTimeoutSeconds); err != nil {
		return err
	}
	if err := num("TTSD_MONITOR_INTERVAL_MS", &cfg.MonitorIntervalMS); err != nil {
		return err
	}
	if v, ok := lookup("TTSD_PRELOAD"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("TTSD_PRELOAD: %w", err)
		}
		cfg.Preload = b
	}
	str("DEVICE", &cfg.Engine.Device)
	str("HF_REPO", &cfg.Engine.HFRepo)
	str("VOICE_REPO", &cfg.Engine.VoiceRepo)
	str("TTSD_WORKER_BIN", &cfg.Engine.WorkerBin)
	if v, ok := lookup("TTSD_WORKER_URL"); ok && strings.TrimSpace(v) != "" {
		cfg.Engine.WorkerURL = strings.TrimSpace(v)
		cfg.Engine.Mode = "remote"
	}
	str("DEFAULT_VOICE", &cfg.Voices.Default)
	str("TTSD_VOICES_DIR", &cfg.Voices.Dir)
	str("TTSD_CUSTOM_VOICES_DIR", &cfg.Voices.CustomDir)
	return nil
}

// Validate reports configuration errors that would only surface later.
func (c Config) Validate() error {
	switch c.Engine.Mode {
	case "spawn":
		if strings.TrimSpace(c.Engine.WorkerBin) == "" {
			return fmt.Errorf("engine.worker_bin is required in spawn mode")
		}
	case "remote":
		if strings.TrimSpace(c.Engine.WorkerURL) == "" {
			return fmt.Errorf("engine.worker_url is required in remote mode")
		}
	default:
		return fmt.Errorf("engine.mode must be spawn or remote, got %q", c.Engine.Mode)
	}
	if c.Engine.PortStart < 0 || c.Engine.PortEnd < 0 || (c.Engine.PortEnd > 0 && c.Engine.PortEnd < c.Engine.PortStart) {
		return fmt.Errorf("invalid engine port range %d-%d", c.Engine.PortStart, c.Engine.PortEnd)
	}
	switch c.LogFormat {
	case "json", "console", "":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	if c.MonitorIntervalMS < 0 {
		return fmt.Errorf("monitor_interval_ms must not be negative")
	}
	return nil
}

// IdleTimeout resolves IdleTimeoutSeconds: 0 means 60s, negative disables
// eviction (returned as 0).
func (c Config) IdleTimeout() time.Duration {
	switch {
	case c.IdleTimeoutSeconds < 0:
		return 0
	case c.IdleTimeoutSeconds == 0:
		return 60 * time.Second
	}
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// MonitorInterval is how often the idle monitor checks; 0 leaves the
// manager default.
func (c Config) MonitorInterval() time.Duration {
	return time.Duration(c.MonitorIntervalMS) * time.Millisecond
}

func (c Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Engine.ReadyTimeoutSeconds) * time.Second
}
