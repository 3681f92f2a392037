package model

import (
	"fmt"
	"time"
)

// Operation is a protection engine operation.
type Operation string

const (
	// OperationLock makes core files immutable.
	OperationLock Operation = "lock"
	// OperationUnlock clears the immutable attribute everywhere.
	OperationUnlock Operation = "unlock"
)

// ParseOperation converts a CLI word into an Operation.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OperationLock, OperationUnlock:
		return Operation(s), nil
	default:
		return "", fmt.Errorf("unknown operation %q (want lock or unlock)", s)
	}
}

// MaxRecordedFailures caps the number of failed paths kept in a SiteResult.
const MaxRecordedFailures = 20

// SiteResult is the outcome of a lock or unlock run against one site.
//
// OK mirrors the historical boolean contract; Entries and Failures carry the
// per-entry detail.
type SiteResult struct {
	// Site is the site root.
	Site string `json:"site"`

	// Operation that was performed.
	Operation Operation `json:"operation"`

	// OK is true when every underlying recursive operation succeeded.
	OK bool `json:"ok"`

	// Entries is the number of filesystem entries whose attribute was toggled.
	Entries int `json:"entries"`

	// Failures is the number of entries that could not be toggled.
	Failures int `json:"failures"`

	// Failed holds up to MaxRecordedFailures failing paths with their error.
	Failed []string `json:"failed,omitempty"`

	// Locked and Kept list the lock dirs and exclude dirs that existed.
	Locked []string `json:"locked,omitempty"`
	Kept   []string `json:"kept,omitempty"`

	// Err is a site-level error such as a missing root.
	Err error `json:"-"`

	// ErrorMessage is Err as text for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// Elapsed is the wall time spent on the site. Writers choose their own
	// unit for it.
	Elapsed time.Duration `json:"-"`
}

// RecordFailure counts a per-entry failure and keeps the first few paths.
func (r *SiteResult) RecordFailure(path string, err error) {
	r.Failures++
	r.OK = false
	if len(r.Failed) < MaxRecordedFailures {
		r.Failed = append(r.Failed, fmt.Sprintf("%s: %v", path, err))
	}
}

// Fail marks the whole site as failed.
func (r *SiteResult) Fail(err error) {
	r.OK = false
	r.Err = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}
