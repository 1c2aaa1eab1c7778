package store

import (
	"context"

	"github.com/josephgoksu/paperboy/models"
)

// TaskStore defines the interface for task persistence. It is the
// identity and consistency core of the pipeline: it exclusively owns
// TaskRecord identity and state transitions, and no other component
// mutates a record directly.
type TaskStore interface {
	// Upsert absorbs a candidate extracted from an email sent by the
	// given sender. It computes the candidate's fingerprint and either
	// merges it into the existing non-completed record with that
	// fingerprint or promotes it to a new pending record. Merging keeps
	// the existing task id, raises priority to the higher of the two,
	// tightens the due date, and never regresses state. A candidate
	// whose fingerprint matches a completed record is absorbed without
	// reopening it. Concurrent upserts for the same fingerprint
	// serialize: at most one record is ever created per fingerprint.
	Upsert(ctx context.Context, sender string, candidate models.TaskCandidate) (models.TaskRecord, error)

	// GetTask retrieves a task by its unique identifier.
	// It returns types.ErrTaskNotFound if no such record exists.
	GetTask(ctx context.Context, id string) (models.TaskRecord, error)

	// MarkPrinted transitions a pending record to printed and stamps
	// printed_at. It returns types.ErrAlreadyPrinted if printed_at is
	// already set, and types.ErrCompletedImmutable for completed records.
	MarkPrinted(ctx context.Context, id string) error

	// MarkCompleted is the terminal transition, allowed from any prior
	// state. It stamps completed_at and records the external tracker id
	// if none is stored yet. Calling it again on a completed record is
	// a no-op.
	MarkCompleted(ctx context.Context, id string, externalID string) error

	// SetExternalID links a record to its counterpart in the external
	// tracker. The link is write-once: storing the same id again is a
	// no-op, storing a different one fails with types.ErrExternalIDSet.
	SetExternalID(ctx context.Context, id string, externalID string) error

	// ListPendingForPrint returns up to limit pending records ordered by
	// priority descending, due date ascending with nulls last, and
	// creation time ascending. Urgent near-deadline work prints first;
	// ties break by creation order for fairness.
	ListPendingForPrint(ctx context.Context, limit int) ([]models.TaskRecord, error)

	// ListOpen returns all records not yet completed, for reconciliation.
	ListOpen(ctx context.Context) ([]models.TaskRecord, error)

	// ListTasks returns every record, newest first. The store is
	// append-only: records are state-transitioned, never deleted.
	ListTasks(ctx context.Context) ([]models.TaskRecord, error)

	// Cursor returns the persisted mailbox cursor, or "" if none is set.
	Cursor(ctx context.Context) (string, error)

	// SetCursor persists the mailbox cursor so a restart resumes without
	// reprocessing already-seen emails.
	SetCursor(ctx context.Context, value string) error

	// RecordExtractionFailure notes an email whose extraction exhausted
	// its retries. Recording the same message id again updates the
	// reason and timestamp.
	RecordExtractionFailure(ctx context.Context, messageID, reason string) error

	// ListExtractionFailures returns recorded failures, oldest first.
	ListExtractionFailures(ctx context.Context) ([]models.ExtractionFailure, error)

	// ClearExtractionFailure removes a failure entry once the email has
	// been reprocessed.
	ClearExtractionFailure(ctx context.Context, messageID string) error

	// Close releases the underlying database connection. It should be
	// called when the store is no longer needed.
	Close() error
}
