package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPaperExists indicates a paper with the same file name was already ingested
	ErrPaperExists = errors.New("paper already exists")
	// ErrClassificationUnavailable indicates the scope classification backend
	// failed, timed out or returned an unparseable answer
	ErrClassificationUnavailable = errors.New("classification unavailable")
	// ErrUpstreamUnavailable indicates the vector index, embedder or answer
	// backend could not serve a request
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
