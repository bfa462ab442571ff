// Package resident holds at most one expensive, memory-heavy artifact (a model
// loaded into accelerator memory) and shares it between concurrent callers.
// It is structured into small files by concern:
//
//   - manager.go: Manager type, Acquire, ForceRelease, IsResident, Close.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: Artifact, Factory, State, release reasons.
//   - monitor.go: background idle eviction.
//   - errors.go: error kinds and helpers (IsConstructionFailed, ErrClosed).
//   - events.go: lifecycle events and the History ring publisher.
//   - metrics.go: prometheus instrumentation.
//   - status_report.go: Status snapshot for observability.
//
// Every read and write of the held artifact goes through one exclusive lock.
// Construction happens while holding that lock, so concurrent callers that
// find the slot empty never construct twice; they wait for the first caller
// and then reuse its result (or retry if it failed).
package resident
