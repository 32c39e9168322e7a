package models

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidKind     = errors.New("invalid session kind")
	ErrInvalidField    = errors.New("invalid session field")
	ErrNoOriginalImage = errors.New("session has no original image")
	ErrUnavailable     = errors.New("service not configured")
)
