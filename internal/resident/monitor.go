package resident

import "time"

// monitor wakes every pollInterval and evicts the artifact once it has been
// idle for longer than idleTimeout. It runs until Close.
func (m *Manager[T]) monitor() {
	defer close(m.done)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	m.log.Debug().Dur("idle_timeout", m.idleTimeout).Dur("interval", m.pollInterval).Msg("idle monitor start")
	for {
		select {
		case <-m.stop:
			m.log.Debug().Msg("idle monitor stop")
			return
		case <-ticker.C:
			m.evictIfIdle()
		}
	}
}

// evictIfIdle performs one monitor tick. It takes the same lock as Acquire
// and ForceRelease, so it waits behind an in-flight construction.
func (m *Manager[T]) evictIfIdle() bool {
	select {
	case m.sem <- struct{}{}:
	case <-m.stop:
		return false
	}
	defer m.unlock()
	if !m.present || m.closed {
		return false
	}
	if m.now().Sub(m.lastUsed) <= m.idleTimeout {
		return false
	}
	m.releaseLocked(ReasonIdle)
	return true
}
