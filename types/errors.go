/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

import "errors"

// Pipeline error taxonomy. Callers classify failures with errors.Is;
// anything else propagates wrapped.
var (
	// ErrMalformedEmail marks a raw message missing its id, sender or
	// body. Skipped, never retried.
	ErrMalformedEmail = errors.New("malformed email")

	// ErrExtractionTimeout marks an extraction call that exceeded its
	// deadline. Retried with backoff up to the configured bound.
	ErrExtractionTimeout = errors.New("extraction timed out")

	// ErrExtractionFailed marks an extraction that exhausted its retries.
	// The source message id is recorded for later reprocessing.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrTaskNotFound is returned by store lookups for unknown task ids.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAlreadyPrinted guards the printed_at field: it is set at most
	// once. Dispatch retries treat this as a benign outcome.
	ErrAlreadyPrinted = errors.New("task already printed")

	// ErrCompletedImmutable is returned for any mutation of a record in
	// the completed state.
	ErrCompletedImmutable = errors.New("completed task is immutable")

	// ErrExternalIDSet guards external_task_id: once stored it never changes.
	ErrExternalIDSet = errors.New("external task id already set")

	// ErrDeviceUnavailable means the printer is offline or out of paper.
	// The whole batch is retried next cycle; no tasks are skipped over.
	ErrDeviceUnavailable = errors.New("printer device unavailable")
)
