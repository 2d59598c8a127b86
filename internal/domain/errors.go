package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrRemoteNotConfigured = errors.New("remote store not configured")
	ErrInvalidEntity       = errors.New("invalid entity")
	ErrInvalidCode         = errors.New("invalid or expired code")
)
