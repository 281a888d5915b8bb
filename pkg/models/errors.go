package models

import "errors"

// Error taxonomy shared across the service, repository and HTTP layers.
// Components wrap these sentinels with fmt.Errorf("%w") so callers can
// classify failures with errors.Is without depending on internals.
var (
	// ErrValidation marks bad caller input or a malformed stored state document.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers both a missing workflow and a workflow owned by
	// someone else. The two are deliberately indistinguishable so that
	// non-owners cannot probe for thread existence.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyCompleted marks a feedback submission against a terminal workflow.
	ErrAlreadyCompleted = errors.New("workflow already completed")

	// ErrUpstreamUnavailable marks a failed search or generation call. The
	// stored workflow is untouched and the request can be retried as-is.
	ErrUpstreamUnavailable = errors.New("upstream capability unavailable")

	// ErrConflict marks a lost optimistic-concurrency race on resume.
	ErrConflict = errors.New("workflow was modified concurrently")
)
