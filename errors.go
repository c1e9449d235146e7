package fincache

import "errors"

var (
	// ErrNotFound is returned when a cache holds no response for a key
	ErrNotFound = errors.New("cached response not found")

	// ErrPrecache is returned when a manifest asset cannot be fetched during install
	ErrPrecache = errors.New("precache failed")

	// ErrAlreadyInstalled is returned when Install is called twice on a worker
	ErrAlreadyInstalled = errors.New("worker already installed")

	// ErrNotActivating is returned when Activate is called on a worker that is
	// not waiting to activate
	ErrNotActivating = errors.New("worker is not waiting to activate")
)
