package service

import (
	"errors"
	"net/http"
)

type badRequestError struct{ msg string }

func (e badRequestError) Error() string   { return e.msg }
func (e badRequestError) StatusCode() int { return http.StatusBadRequest }

// IsBadRequest reports whether err is a request validation failure.
func IsBadRequest(err error) bool {
	var e badRequestError
	return errors.As(err, &e)
}
