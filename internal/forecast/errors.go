package forecast

import "errors"

var (
	// ErrInvalidRequest is returned before any provider dispatch when the request is unusable.
	ErrInvalidRequest = errors.New("invalid forecast request")

	// ErrProviderTimeout marks a provider that did not answer before its deadline.
	ErrProviderTimeout = errors.New("provider timed out")

	// ErrProviderError marks a provider that failed or returned malformed data.
	ErrProviderError = errors.New("provider error")

	// ErrNotFound is returned by History backends when nothing matches.
	ErrNotFound = errors.New("no forecast history")
)
