package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrUnknownSite is returned when the requested site is not configured
	ErrUnknownSite = errors.New("unknown site")

	// ErrSearchFailed covers transport, parse and explicit "no success" crawl failures
	ErrSearchFailed = errors.New("search failed")

	// ErrStoreRead is returned when reading from the content store fails
	ErrStoreRead = errors.New("content store read failed")

	// ErrStoreWrite is returned when creating or deleting in the content store fails
	ErrStoreWrite = errors.New("content store write failed")

	// ErrMixedSiteBatch is returned when a reconciliation batch spans more than one site
	ErrMixedSiteBatch = errors.New("batch contains records for more than one site")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrSessionNotFound is returned when no durable copy of a session exists
	ErrSessionNotFound = errors.New("session not found")
)
