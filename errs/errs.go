package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across components.
var (
	// ErrNoResults means the search provider found nothing or was
	// unreachable. The two cases are deliberately collapsed at the
	// resolver boundary; the distinction is only logged.
	ErrNoResults = errors.New("no results")

	// ErrNotFound is returned by the metadata store when no cache record
	// exists for an (asset, variant) key.
	ErrNotFound = errors.New("cache record not found")
)

// FetchError wraps a download/transcode provider failure. No cache record
// is ever written when one of these is returned.
type FetchError struct {
	AssetID string
	Cause   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for asset %s: %v", e.AssetID, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// DeliveryError wraps a send provider failure, including artifacts over
// the platform size ceiling.
type DeliveryError struct {
	Path  string
	Cause error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed for %s: %v", e.Path, e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// SessionError wraps a live-streaming provider failure. Op is the
// provider call that failed ("join" or "leave").
type SessionError struct {
	SessionID string
	Op        string
	Cause     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s failed: %v", e.SessionID, e.Op, e.Cause)
}

func (e *SessionError) Unwrap() error { return e.Cause }
