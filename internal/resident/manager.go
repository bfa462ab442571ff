package resident

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Manager owns at most one artifact of type T. The zero value is not usable;
// construct with New.
type Manager[T Artifact] struct {
	// sem is a one-slot semaphore guarding every field below it. A channel
	// instead of sync.Mutex so waiters can give up on context cancellation.
	sem      chan struct{}
	artifact T
	present  bool
	lastUsed time.Time
	closed   bool

	// Lock-free mirrors for probes that must not wait behind a construction.
	state        atomic.Int32
	lastUsedNano atomic.Int64

	name         string
	idleTimeout  time.Duration
	pollInterval time.Duration
	onRelease    func()
	publisher    EventPublisher
	now          func() time.Time
	log          zerolog.Logger

	statsMu      sync.Mutex
	loads        uint64
	loadFailures uint64
	releases     uint64
	lastErr      string

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Acquire returns the held artifact, constructing it with factory first if
// none is held. Construction runs while holding the manager lock, so
// concurrent callers never construct twice: they wait, then reuse the result
// or retry construction themselves if it failed.
//
// ctx bounds only the wait for the lock. Once this caller has started the
// factory it runs to completion and the result is stored even if ctx is
// cancelled meanwhile.
func (m *Manager[T]) Acquire(ctx context.Context, factory Factory[T]) (T, error) {
	var zero T
	if factory == nil {
		return zero, errors.New("resident: nil factory")
	}
	if err := m.lock(ctx); err != nil {
		return zero, err
	}
	defer m.unlock()
	if m.closed {
		return zero, ErrClosed
	}
	if !m.present {
		art, err := m.construct(factory)
		if err != nil {
			return zero, err
		}
		m.artifact = art
		m.present = true
		m.setState(StateResident)
	}
	m.touch()
	return m.artifact, nil
}

// ForceRelease destroys the held artifact, if any, and reports whether one
// was released. It waits behind an in-flight construction and then releases
// its result.
func (m *Manager[T]) ForceRelease() bool {
	m.sem <- struct{}{}
	defer m.unlock()
	if !m.present {
		return false
	}
	m.releaseLocked(ReasonForced)
	return true
}

// IsResident reports whether an artifact is currently held. It does not
// extend residency and does not block behind a construction.
func (m *Manager[T]) IsResident() bool {
	return m.currentState() == StateResident
}

// Close stops the idle monitor and releases the artifact. Subsequent Acquire
// calls fail with ErrClosed. Safe to call more than once.
func (m *Manager[T]) Close() error {
	m.closeOnce.Do(func() {
		if m.stop != nil {
			close(m.stop)
			<-m.done
		}
		m.sem <- struct{}{}
		m.closed = true
		if m.present {
			m.releaseLocked(ReasonShutdown)
		}
		m.unlock()
	})
	return nil
}

func (m *Manager[T]) lock(ctx context.Context) error {
	select {
	case m.sem <- struct{}{}:
		return nil
	default:
	}
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager[T]) unlock() { <-m.sem }

// construct runs factory with the lock held. Panics are converted to
// construction errors so a crashing loader cannot poison the slot.
func (m *Manager[T]) construct(factory Factory[T]) (art T, err error) {
	m.setState(StateLoading)
	m.emit(EventLoadStart, nil)
	m.log.Info().Msg("load start")
	start := m.now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("factory panic: %v", r)
			}
		}()
		art, err = factory()
	}()
	if err == nil && isNil(art) {
		err = errors.New("factory returned nil artifact")
	}
	dur := m.now().Sub(start)
	loadDuration.WithLabelValues(m.name).Observe(dur.Seconds())
	if err != nil {
		var zero T
		m.setState(StateAbsent)
		loadsTotal.WithLabelValues(m.name, "error").Inc()
		m.statsMu.Lock()
		m.loadFailures++
		m.lastErr = err.Error()
		m.statsMu.Unlock()
		m.log.Error().Err(err).Dur("dur", dur).Msg("load failed")
		m.emit(EventLoadError, map[string]any{"error": err.Error()})
		return zero, constructionError{name: m.name, cause: err}
	}
	loadsTotal.WithLabelValues(m.name, "ok").Inc()
	m.statsMu.Lock()
	m.loads++
	m.lastErr = ""
	m.statsMu.Unlock()
	m.log.Info().Dur("dur", dur).Msg("load done")
	m.emit(EventLoadDone, map[string]any{"dur_ms": int(dur / time.Millisecond)})
	return art, nil
}

// releaseLocked drops the held artifact. Caller must hold the lock and have
// checked m.present. State becomes absent even if Close fails.
func (m *Manager[T]) releaseLocked(reason string) {
	art := m.artifact
	var zero T
	m.artifact = zero
	m.present = false
	m.setState(StateAbsent)

	idle := m.now().Sub(m.lastUsed)
	fields := map[string]any{"reason": reason}
	if err := closeArtifact(art); err != nil {
		fields["error"] = err.Error()
		m.statsMu.Lock()
		m.lastErr = err.Error()
		m.statsMu.Unlock()
		m.log.Warn().Err(err).Str("reason", reason).Msg("release failed")
	}
	if m.onRelease != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Warn().Interface("panic", r).Msg("release hook panic")
				}
			}()
			m.onRelease()
		}()
	}
	releasesTotal.WithLabelValues(m.name, reason).Inc()
	m.statsMu.Lock()
	m.releases++
	m.statsMu.Unlock()
	m.log.Info().Str("reason", reason).Dur("idle", idle).Msg("released")
	m.emit(EventRelease, fields)
}

// isNil also catches typed nils, e.g. a nil *X returned as T = *X or
// wrapped in an interface T.
func isNil(a Artifact) bool {
	if a == nil {
		return true
	}
	switch v := reflect.ValueOf(a); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func closeArtifact(a Artifact) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("close panic: %v", r)
		}
	}()
	return a.Close()
}

func (m *Manager[T]) emit(name string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	m.publisher.Publish(Event{Name: name, Resource: m.name, Time: m.now(), Fields: fields})
}

func (m *Manager[T]) touch() {
	t := m.now()
	m.lastUsed = t
	m.lastUsedNano.Store(t.UnixNano())
}

func (m *Manager[T]) setState(s State) {
	m.state.Store(stateCode(s))
	if s == StateResident {
		residentGauge.WithLabelValues(m.name).Set(1)
	} else {
		residentGauge.WithLabelValues(m.name).Set(0)
	}
}

func (m *Manager[T]) currentState() State {
	return stateCodes[m.state.Load()]
}
