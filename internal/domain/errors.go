package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the aggregation pipeline.
var (
	// ErrInvalidQuery is returned when a query is empty after trimming.
	ErrInvalidQuery = errors.New("query must not be empty")
	// ErrInvalidLimit is returned when a result limit is not positive.
	ErrInvalidLimit = errors.New("limit must be greater than zero")
	// ErrAdapterTimeout is returned when a source did not answer within
	// its allotted time.
	ErrAdapterTimeout = errors.New("source timed out")
	// ErrCapabilityUnsupported is returned when an optional capability
	// (categories, product detail) is requested from a source that does
	// not implement it.
	ErrCapabilityUnsupported = errors.New("source does not support this capability")
	// ErrUnknownSource is returned when a source id is not registered.
	ErrUnknownSource = errors.New("unknown source")
)

// UpstreamError reports a non-2xx status or malformed payload from a
// marketplace.
type UpstreamError struct {
	Source     SourceID
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s upstream returned status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s upstream error: %s", e.Source, e.Message)
}

// AllSourcesFailedError is returned only when every configured source failed
// for one aggregate call. It carries the per-source reasons so callers can
// distinguish a total outage from an empty catalog.
type AllSourcesFailedError struct {
	Failures []PartialFailure
}

func (e *AllSourcesFailedError) Error() string {
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, fmt.Sprintf("%s: %s", f.Source, f.Reason))
	}
	return "all sources failed: " + strings.Join(reasons, "; ")
}

// IsAllSourcesFailed reports whether err is an AllSourcesFailedError.
func IsAllSourcesFailed(err error) bool {
	var e *AllSourcesFailedError
	return errors.As(err, &e)
}
