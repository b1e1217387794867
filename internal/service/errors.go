package service

import "errors"

// ErrInvalidInput marks caller errors that map to HTTP 400.
var ErrInvalidInput = errors.New("invalid input")
