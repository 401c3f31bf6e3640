package optimize

import "errors"

var (
	// ErrNoAPIKey means a remote optimizer was selected without
	// credentials. The content passes through unchanged.
	ErrNoAPIKey = errors.New("optimizer api key not configured")

	// ErrEmptyResponse means the backend answered without usable content.
	ErrEmptyResponse = errors.New("optimizer returned empty content")
)
