package pipeline

import (
	"context"

	"github.com/josephgoksu/paperboy/internal/logger"
	"github.com/josephgoksu/paperboy/internal/tracker"
	"github.com/josephgoksu/paperboy/store"
)

// Reconciler keeps the local store and the external tracker in
// agreement: every open record gets pushed to the tracker exactly
// once, and records whose tracker task is done get completed locally.
type Reconciler struct {
	tasks   store.TaskStore
	tracker tracker.Tracker
}

// NewReconciler wires the store to a tracker client.
func NewReconciler(tasks store.TaskStore, trk tracker.Tracker) *Reconciler {
	return &Reconciler{tasks: tasks, tracker: trk}
}

// Reconcile walks all open records. Records without an external id are
// created in the tracker and the returned id is stored; the rest have
// their tracker status polled and are completed when the tracker says
// done. A failure on one record is logged and the walk continues, so a
// flaky tracker degrades reconciliation instead of halting it.
//
// The external-id guard is what makes re-runs safe: once SetExternalID
// has persisted the id, later cycles poll instead of creating. If the
// process dies between CreateTask and SetExternalID the next cycle
// pushes again; the tracker may then hold a duplicate, but the store
// never will.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	open, err := r.tasks.ListOpen(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, rec := range open {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}

		if rec.ExternalTaskID == "" {
			externalID, err := r.tracker.CreateTask(ctx, rec.Title, rec.Description, rec.DueAt)
			if err != nil {
				logger.Warn("tracker push failed", "task", rec.ID, "error", err)
				continue
			}
			if err := r.tasks.SetExternalID(ctx, rec.ID, externalID); err != nil {
				logger.Error("failed to persist external id", "task", rec.ID, "external", externalID, "error", err)
				continue
			}
			logger.Debug("pushed task to tracker", "task", rec.ID, "external", externalID)
			updated++
			continue
		}

		status, err := r.tracker.GetStatus(ctx, rec.ExternalTaskID)
		if err != nil {
			logger.Warn("tracker status poll failed", "task", rec.ID, "external", rec.ExternalTaskID, "error", err)
			continue
		}
		if status == tracker.StatusDone {
			if err := r.tasks.MarkCompleted(ctx, rec.ID, rec.ExternalTaskID); err != nil {
				logger.Error("failed to complete task", "task", rec.ID, "error", err)
				continue
			}
			logger.Info("task completed in tracker", "task", rec.ID, "title", rec.Title)
			updated++
		}
	}
	return updated, nil
}
