package domain

import "errors"

var (
	ErrNotFound       = errors.New("event not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrStore          = errors.New("store failure")
	ErrStartup        = errors.New("startup failure")
)
