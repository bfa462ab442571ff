package tts

import (
	"errors"
	"net/http"
)

// workerUnavailableError signals that the worker could not be started or
// reached, so the HTTP layer can return 503 instead of 500.
type workerUnavailableError struct{ msg string }

func (e workerUnavailableError) Error() string { return e.msg }

// ErrWorkerUnavailable constructs a workerUnavailableError.
func ErrWorkerUnavailable(msg string) error { return workerUnavailableError{msg: msg} }

// IsWorkerUnavailable reports whether err indicates a missing or dead worker.
func IsWorkerUnavailable(err error) bool {
	var we workerUnavailableError
	return errors.As(err, &we)
}

// WorkerError is a non-2xx reply from the worker.
type WorkerError struct {
	Status int
	Msg    string
}

func (e *WorkerError) Error() string {
	return "worker: " + http.StatusText(e.Status) + ": " + e.Msg
}

// StatusCode maps worker replies onto our own API: client errors pass
// through, anything else is a bad gateway.
func (e *WorkerError) StatusCode() int {
	if e.Status >= 400 && e.Status < 500 {
		return e.Status
	}
	return http.StatusBadGateway
}
