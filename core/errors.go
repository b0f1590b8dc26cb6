package core

import (
	"errors"
	"fmt"
)

// Sentinel errors callers can match against with errors.Is.
var (
	// ErrUnauthenticated means the client secret presented by the
	// caller is not present in the current ResolverState.
	ErrUnauthenticated = errors.New("client secret not found")
	// ErrInvalidState means set_state's input failed decode or
	// integrity checks; the previous state is retained.
	ErrInvalidState = errors.New("invalid resolver state")
)

// DecodeError wraps a failure to decode the snapshot into a
// ResolverState: malformed JSON, a malformed value, and similar
// "the bytes aren't even shaped right" failures.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode resolver state: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode resolver state: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IntegrityError wraps a structurally well-formed snapshot that
// violates one of the ResolverState invariants: a dangling reference,
// overlapping assignment ranges, a zero bucket_count, or a bucket range
// outside [0, bucket_count).
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("resolver state integrity violation: %s", e.Reason)
}

// AuthenticationError is surfaced as a top-level error at the resolve
// boundary when a client secret is unknown.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("resolve failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// wrap adds context to an error message, mirroring the minimal helper
// this codebase has used for error annotation. It returns nil if err is
// nil so callers can write `return wrap(err, "...")` unconditionally.
func wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
