// Package store implements the encrypted at-rest file store: per-upload
// compression selection, the encrypted envelope codec, delete-capability
// tokens, and the background expiry sweeper.
package store

import "errors"

// Sentinel errors used for stable mapping to HTTP responses.
var (
	// ErrEmptyPayload indicates an upload with no content.
	ErrEmptyPayload = errors.New("empty payload")

	// ErrNotFound indicates the named record has no content artifact.
	ErrNotFound = errors.New("file not found")

	// ErrForbidden indicates a missing or mismatched delete token.
	ErrForbidden = errors.New("invalid delete token")

	// ErrCorruptEnvelope indicates the stored ciphertext cannot be
	// authenticated or decrypted. The raw ciphertext is never returned
	// to the caller in this case.
	ErrCorruptEnvelope = errors.New("stored file is unreadable")
)
