package storage

import "errors"

var (
	// ErrProviderNotFound is returned when a provider is not found or belongs to another user
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderExists is returned when the user already has a provider with that name
	ErrProviderExists = errors.New("provider already exists")

	// ErrConfigNotFound is returned when a user config is not found
	ErrConfigNotFound = errors.New("config not found")
)
