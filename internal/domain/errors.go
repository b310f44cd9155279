package domain

import "errors"

var (
	ErrNoSession          = errors.New("no stored session")
	ErrInvalidTask        = errors.New("invalid task")
	ErrInvalidFilters     = errors.New("invalid task filters")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
