package engine

import "errors"

var (
	// ErrAllCredentialsExhausted means every candidate failed on capacity
	// grounds. Callers must not retry within the same request.
	ErrAllCredentialsExhausted = errors.New("all credentials exhausted")

	// ErrNoCandidates means the request had no credentials to rotate over.
	ErrNoCandidates = errors.New("no candidate credentials")
)
