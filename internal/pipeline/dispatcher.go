package pipeline

import (
	"context"
	"errors"

	"github.com/josephgoksu/paperboy/internal/logger"
	"github.com/josephgoksu/paperboy/internal/printer"
	"github.com/josephgoksu/paperboy/store"
	"github.com/josephgoksu/paperboy/types"
)

// Dispatcher drains the print queue one receipt at a time: render,
// print, mark printed, next. Sequential on purpose - a receipt printer
// is a serial device and the queue order is the whole point.
type Dispatcher struct {
	tasks     store.TaskStore
	device    printer.Printer
	batchSize int
	width     int
}

// NewDispatcher builds a dispatcher printing at most batchSize tasks
// per cycle at the given paper width.
func NewDispatcher(tasks store.TaskStore, device printer.Printer, batchSize, width int) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 10
	}
	if width <= 0 {
		width = printer.DefaultWidth
	}
	return &Dispatcher{tasks: tasks, device: device, batchSize: batchSize, width: width}
}

// Dispatch prints the next batch of pending tasks in queue order and
// returns the ids that made it onto paper. Each task is marked printed
// immediately after its receipt succeeds, so a crash mid-batch never
// reprints finished work. A types.ErrDeviceUnavailable stops the batch;
// the unprinted remainder is still pending and the next cycle retries
// it. Cancellation is honored between receipts, never mid-print.
func (d *Dispatcher) Dispatch(ctx context.Context) ([]string, error) {
	batch, err := d.tasks.ListPendingForPrint(ctx, d.batchSize)
	if err != nil {
		return nil, err
	}

	var printed []string
	for _, rec := range batch {
		if ctx.Err() != nil {
			return printed, ctx.Err()
		}

		rendered := printer.RenderReceipt(rec, d.width)
		if err := d.device.Print(ctx, rendered); err != nil {
			if errors.Is(err, types.ErrDeviceUnavailable) {
				logger.Warn("printer unavailable, deferring batch", "printed", len(printed), "remaining", len(batch)-len(printed))
			}
			return printed, err
		}

		if err := d.tasks.MarkPrinted(ctx, rec.ID); err != nil && !errors.Is(err, types.ErrAlreadyPrinted) {
			return printed, err
		}
		logger.Info("printed task", "task", rec.ID, "title", rec.Title, "priority", rec.Priority)
		printed = append(printed, rec.ID)
	}
	return printed, nil
}
