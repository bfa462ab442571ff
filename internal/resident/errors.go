package resident

import "errors"

// ErrClosed is returned by Acquire after the manager has been closed.
var ErrClosed = errors.New("resident: manager closed")

// constructionError signals that the factory failed; the manager state is
// left absent and the next Acquire retries.
type constructionError struct {
	name  string
	cause error
}

func (e constructionError) Error() string {
	return "construct " + e.name + ": " + e.cause.Error()
}

func (e constructionError) Unwrap() error { return e.cause }

// IsConstructionFailed reports whether err came from a failed artifact construction.
func IsConstructionFailed(err error) bool {
	var ce constructionError
	return errors.As(err, &ce)
}
