package domain

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoWork indicates no queued generation is eligible for claiming.
	ErrNoWork = errors.New("no work available")
	// ErrClaimConflict indicates another worker claimed the generation
	// first. Expected under concurrency, never treated as a failure.
	ErrClaimConflict = errors.New("generation already claimed")
)

// ProviderError wraps an upstream generative AI failure. The message becomes
// the generation's error text verbatim.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return "provider: " + e.Err.Error()
	}
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StorageError wraps an object-store upload failure.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return "storage: " + e.Err.Error()
	}
	return "storage " + e.Key + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError reports malformed input or a malformed provider response.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }
