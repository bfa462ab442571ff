package resident

// Artifact is the opaque resident handle. Close releases the underlying
// resource (device memory, worker process). The manager never inspects the
// artifact beyond calling Close exactly once per constructed instance.
type Artifact interface {
	Close() error
}

// Factory constructs a new artifact. It may be slow and it may fail; it must
// be safe to call again after a failure. A nil artifact with a nil error,
// typed or not, counts as a failed construction.
type Factory[T Artifact] func() (T, error)

// State represents the lifecycle state of the held artifact.
type State string

const (
	StateAbsent   State = "absent"
	StateLoading  State = "loading"
	StateResident State = "resident"
)

// Release reasons reported in events, logs and metrics.
const (
	ReasonForced   = "forced"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
)

var stateCodes = [...]State{StateAbsent, StateLoading, StateResident}

func stateCode(s State) int32 {
	for i, v := range stateCodes {
		if v == s {
			return int32(i)
		}
	}
	return 0
}
