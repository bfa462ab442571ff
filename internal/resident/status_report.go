package resident

import "time"

// Status is a read-only projection of the manager state.
type Status struct {
	State        State
	LastUsed     time.Time
	IdleTimeout  time.Duration
	Loads        uint64
	LoadFailures uint64
	Releases     uint64
	LastError    string
}

// Status returns the current state without taking the manager lock, so it
// stays responsive during a slow construction.
func (m *Manager[T]) Status() Status {
	st := Status{State: m.currentState(), IdleTimeout: m.idleTimeout}
	if n := m.lastUsedNano.Load(); n != 0 {
		st.LastUsed = time.Unix(0, n)
	}
	m.statsMu.Lock()
	st.Loads = m.loads
	st.LoadFailures = m.loadFailures
	st.Releases = m.releases
	st.LastError = m.lastErr
	m.statsMu.Unlock()
	return st
}
