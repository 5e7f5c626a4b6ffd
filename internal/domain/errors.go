package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups that match no stored record.
var ErrNotFound = errors.New("not found")

// MalformedRecordError reports one upstream record that could not be normalized.
// It is contained to that record and never aborts its batch.
type MalformedRecordError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: %s %q: %s", e.Field, e.Value, e.Reason)
}

// UpstreamUnavailableError reports a source that timed out, failed at the
// transport level, or returned an unusable envelope.
type UpstreamUnavailableError struct {
	Source string
	Err    error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.Source, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// StoreUnavailableError reports that the persistence layer could not be reached.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// InvalidQueryError reports missing or out-of-range caller input.
type InvalidQueryError struct {
	Field  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
