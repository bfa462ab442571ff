package tts

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Engine modes.
const (
	ModeSpawn  = "spawn"
	ModeRemote = "remote"
)

// LoaderConfig selects how a Model is constructed.
type LoaderConfig struct {
	Mode         string
	Worker       WorkerConfig
	RemoteURL    string
	ReadyTimeout time.Duration
}

// Loader constructs Models; Load is the factory handed to the resident
// manager, so it is only ever called while the manager holds its lock.
type Loader struct {
	cfg LoaderConfig
	log zerolog.Logger
}

func NewLoader(cfg LoaderConfig, log zerolog.Logger) *Loader {
	if cfg.Mode == "" {
		cfg.Mode = ModeSpawn
	}
	if cfg.Worker.ReadyTimeout <= 0 {
		cfg.Worker.ReadyTimeout = cfg.ReadyTimeout
	}
	return &Loader{cfg: cfg, log: log}
}

// Load builds a new Model.
func (l *Loader) Load() (Model, error) {
	switch l.cfg.Mode {
	case ModeSpawn:
		w, err := Spawn(l.cfg.Worker, l.log)
		if err != nil {
			return nil, err
		}
		return w, nil
	case ModeRemote:
		if l.cfg.RemoteURL == "" {
			return nil, ErrWorkerUnavailable("remote mode requires a worker url")
		}
		w, err := Connect(l.cfg.RemoteURL, l.cfg.ReadyTimeout, l.log)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unknown engine mode %q", l.cfg.Mode)
	}
}
