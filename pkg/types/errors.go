package types

import (
	"errors"
	"fmt"
)

// Error taxonomy for the resolution and delivery pipeline. Strategy-level
// failures are absorbed inside the resolver; only these typed failures cross
// component boundaries, where the HTTP layer maps them to status codes.

// ErrInput marks malformed or out-of-domain caller input. Never retried.
var ErrInput = errors.New("invalid input")

// ErrResolutionFailed marks total exhaustion of the resolver chain.
var ErrResolutionFailed = errors.New("resolution failed")

// ErrUpstreamAuth marks a rejected or unobtainable provider token.
var ErrUpstreamAuth = errors.New("upstream auth failed")

// UpstreamError reports a failed upstream fetch after all local recovery
// (alternate headers, alternate URL variants) has been exhausted.
type UpstreamError struct {
	URL        string
	StatusCode int
	Suggestion string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream fetch failed: %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("upstream fetch failed: %s: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// InputError wraps ErrInput with a human-readable message safe for clients.
func InputError(msg string) error {
	return fmt.Errorf("%w: %s", ErrInput, msg)
}
