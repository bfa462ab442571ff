package resident

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultPollInterval = 10 * time.Second
	defaultName         = "model"
)

// DefaultIdleTimeout is the idle threshold used by deployments that do not
// configure one explicitly.
const DefaultIdleTimeout = 60 * time.Second

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// Name labels logs, events and metrics for this manager.
	Name string
	// IdleTimeout is the inactivity threshold after which the artifact is
	// evicted. Zero or negative disables the idle monitor entirely.
	IdleTimeout time.Duration
	// PollInterval is how often the idle monitor wakes up.
	PollInterval time.Duration
	// OnRelease runs after every artifact Close, e.g. to return cached
	// device memory to the driver. Best effort; panics are recovered.
	OnRelease func()
	Logger    zerolog.Logger
	Publisher EventPublisher
	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// New constructs a Manager from Config and starts its idle monitor when an
// idle timeout is configured.
func New[T Artifact](cfg Config) *Manager[T] {
	m := &Manager[T]{
		sem:          make(chan struct{}, 1),
		name:         cfg.Name,
		idleTimeout:  cfg.IdleTimeout,
		pollInterval: cfg.PollInterval,
		onRelease:    cfg.OnRelease,
		publisher:    cfg.Publisher,
		now:          cfg.Now,
		log:          cfg.Logger,
	}
	if m.name == "" {
		m.name = defaultName
	}
	if m.pollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.log = m.log.With().Str("component", "resident").Str("name", m.name).Logger()
	residentGauge.WithLabelValues(m.name).Set(0)
	if m.idleTimeout > 0 {
		m.stop = make(chan struct{})
		m.done = make(chan struct{})
		go m.monitor()
	}
	return m
}
