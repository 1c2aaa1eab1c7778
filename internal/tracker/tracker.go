package tracker

import (
	"context"
	"time"
)

// Status is the external tracker's view of one task.
type Status string

const (
	StatusOpen Status = "open"
	StatusDone Status = "done"
)

// Tracker is the narrow contract the reconciler needs from an external
// task tracker. Calls may duplicate on retry; implementations are
// treated as at-least-once and the store's write-once external id
// guard absorbs the duplicates.
type Tracker interface {
	// CreateTask creates the counterpart task and returns its external id.
	CreateTask(ctx context.Context, title string, notes string, dueAt *time.Time) (string, error)

	// GetStatus reports whether the external task is still open or done.
	GetStatus(ctx context.Context, externalID string) (Status, error)
}
