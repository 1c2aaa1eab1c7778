package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/josephgoksu/paperboy/internal/logger"
	"github.com/josephgoksu/paperboy/internal/mailbox"
	"github.com/josephgoksu/paperboy/store"
	"github.com/josephgoksu/paperboy/types"
)

// Mailbox is the slice of the mail adapter the orchestrator needs:
// fetch everything newer than the cursor and hand back the advanced
// cursor.
type Mailbox interface {
	FetchNewSince(ctx context.Context, cursor string) ([]mailbox.RawMessage, string, error)
}

// CycleStats counts what one pipeline cycle did. Logged after every
// cycle so a glance at the journal shows whether mail is flowing.
type CycleStats struct {
	Fetched           int
	Malformed         int
	FailedExtractions int
	Candidates        int
	Upserted          int
	Reconciled        int
	Printed           int
}

// Orchestrator runs the full cycle: fetch new mail, extract
// candidates, upsert them, reconcile with the tracker, print the
// pending queue. Stages are independent - a dead printer does not stop
// mail ingestion, a dead mailbox does not stop printing.
type Orchestrator struct {
	mail       Mailbox
	extractor  *Extractor
	tasks      store.TaskStore
	reconciler *Reconciler
	dispatcher *Dispatcher
	interval   time.Duration
}

// NewOrchestrator assembles the pipeline. interval is the pause
// between cycles when running continuously.
func NewOrchestrator(mail Mailbox, ex *Extractor, tasks store.TaskStore, rec *Reconciler, disp *Dispatcher, interval time.Duration) *Orchestrator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Orchestrator{
		mail:       mail,
		extractor:  ex,
		tasks:      tasks,
		reconciler: rec,
		dispatcher: disp,
		interval:   interval,
	}
}

// Run cycles until the context is cancelled. Cycle errors are logged,
// never fatal: the next tick gets a fresh chance.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		stats, err := o.RunCycle(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("pipeline cycle finished with error", "error", err)
		}
		logger.Info("cycle complete",
			"fetched", stats.Fetched,
			"malformed", stats.Malformed,
			"failed_extractions", stats.FailedExtractions,
			"candidates", stats.Candidates,
			"upserted", stats.Upserted,
			"reconciled", stats.Reconciled,
			"printed", stats.Printed,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle executes one pass of the pipeline. Cancellation is checked
// between stages so shutdown never interrupts a half-written record or
// a half-printed receipt.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	if err := o.ingest(ctx, &stats); err != nil {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		logger.Error("mail ingestion failed", "error", err)
	}
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}

	if o.reconciler != nil {
		reconciled, err := o.reconciler.Reconcile(ctx)
		stats.Reconciled = reconciled
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			logger.Error("reconciliation failed", "error", err)
		}
	}
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}

	printed, err := o.dispatcher.Dispatch(ctx)
	stats.Printed = len(printed)
	if err != nil {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if errors.Is(err, types.ErrDeviceUnavailable) {
			// Pending tasks stay queued; next cycle retries.
			return stats, nil
		}
		return stats, err
	}
	return stats, nil
}

// ingest fetches new mail, runs extraction on each message, and
// upserts the surviving candidates. The cursor only advances after the
// fetched messages have been handed to extraction, so a crash replays
// the window instead of dropping it; the fingerprint upsert makes the
// replay harmless.
func (o *Orchestrator) ingest(ctx context.Context, stats *CycleStats) error {
	cursor, err := o.tasks.Cursor(ctx)
	if err != nil {
		return err
	}

	raws, newCursor, err := o.mail.FetchNewSince(ctx, cursor)
	if err != nil {
		return err
	}
	stats.Fetched = len(raws)

	for _, raw := range raws {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		email, err := mailbox.Normalize(raw)
		if err != nil {
			stats.Malformed++
			logger.Warn("skipping malformed message", "message", raw.ID, "error", err)
			continue
		}

		candidates, err := o.extractor.Extract(ctx, email)
		if err != nil {
			stats.FailedExtractions++
			continue
		}
		stats.Candidates += len(candidates)

		for _, candidate := range candidates {
			if _, err := o.tasks.Upsert(ctx, email.Sender, candidate); err != nil {
				logger.Error("upsert failed", "message", email.MessageID, "title", candidate.Title, "error", err)
				continue
			}
			stats.Upserted++
		}
	}

	if newCursor != "" && newCursor != cursor {
		if err := o.tasks.SetCursor(ctx, newCursor); err != nil {
			return err
		}
	}
	return nil
}
