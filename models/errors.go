package models

import "errors"

var ErrValidation = errors.New("invalid request")
var ErrNotFound = errors.New("requested resource not found")

// ErrModelUnavailable is absorbed by the predictor's fallback and never
// reaches a caller.
var ErrModelUnavailable = errors.New("delay model unavailable")
var ErrRoutingProvider = errors.New("routing provider failure")
var ErrPersistence = errors.New("persistence failure")
var ErrInvalidTransition = errors.New("invalid proposal status transition")
