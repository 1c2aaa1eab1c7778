package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/josephgoksu/paperboy/models"
	"github.com/josephgoksu/paperboy/types"
)

// fakePrinter records every payload. A non-zero failAfter makes the
// printer report the device gone once that many prints succeeded;
// failAfter -1 fails from the first print.
type fakePrinter struct {
	mu        sync.Mutex
	printed   []string
	failAfter int
}

func (p *fakePrinter) Print(_ context.Context, rendered []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAfter != 0 && len(p.printed) >= p.failAfter {
		return fmt.Errorf("connection refused: %w", types.ErrDeviceUnavailable)
	}
	p.printed = append(p.printed, string(rendered))
	return nil
}

func TestDispatch_PrintsQueueInOrder(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	device := &fakePrinter{}
	d := NewDispatcher(st, device, 10, 32)

	due := time.Date(2025, 6, 6, 17, 0, 0, 0, time.UTC)
	seed := []models.TaskCandidate{
		{Title: "Water the plants", Priority: models.PriorityLow, SourceMessageID: "m1"},
		{Title: "Call the landlord", Priority: models.PriorityUrgent, DueAt: &due, SourceMessageID: "m2"},
		{Title: "Book dentist", Priority: models.PriorityNormal, SourceMessageID: "m3"},
	}
	for _, c := range seed {
		if _, err := st.Upsert(ctx, "sender@example.com", c); err != nil {
			t.Fatalf("Upsert(%q) error = %v", c.Title, err)
		}
	}

	printed, err := d.Dispatch(ctx)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(printed) != 3 {
		t.Fatalf("printed %d tasks, want 3", len(printed))
	}

	wantOrder := []string{"Call the landlord", "Book dentist", "Water the plants"}
	for i, title := range wantOrder {
		if !strings.Contains(device.printed[i], title) {
			t.Errorf("receipt %d missing %q", i, title)
		}
	}

	// Everything printed: the queue must now be empty.
	again, err := d.Dispatch(ctx)
	if err != nil {
		t.Fatalf("Dispatch() second run error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second dispatch printed %d tasks, want 0", len(again))
	}
}

func TestDispatch_DeviceFailureStopsBatch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	device := &fakePrinter{failAfter: 1}
	d := NewDispatcher(st, device, 10, 32)

	for i := 0; i < 3; i++ {
		c := models.TaskCandidate{Title: fmt.Sprintf("Task number %d", i), SourceMessageID: fmt.Sprintf("m%d", i)}
		if _, err := st.Upsert(ctx, "sender@example.com", c); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	printed, err := d.Dispatch(ctx)
	if !errors.Is(err, types.ErrDeviceUnavailable) {
		t.Fatalf("Dispatch() error = %v, want ErrDeviceUnavailable", err)
	}
	if len(printed) != 1 {
		t.Fatalf("printed %d tasks before failure, want 1", len(printed))
	}

	// The printed task is recorded; the remainder is still pending and
	// resumes once the device comes back.
	pending, err := st.ListPendingForPrint(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingForPrint() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("%d tasks still pending, want 2", len(pending))
	}

	device.failAfter = 0
	resumed, err := d.Dispatch(ctx)
	if err != nil {
		t.Fatalf("Dispatch() after recovery error = %v", err)
	}
	if len(resumed) != 2 {
		t.Errorf("printed %d tasks after recovery, want 2", len(resumed))
	}
}

func TestDispatch_MarksPrintedImmediately(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	device := &fakePrinter{failAfter: 1}
	d := NewDispatcher(st, device, 10, 32)

	first, err := st.Upsert(ctx, "sender@example.com", models.TaskCandidate{Title: "First out", Priority: models.PriorityHigh, SourceMessageID: "m1"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := st.Upsert(ctx, "sender@example.com", models.TaskCandidate{Title: "Second out", SourceMessageID: "m2"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if _, err := d.Dispatch(ctx); !errors.Is(err, types.ErrDeviceUnavailable) {
		t.Fatalf("Dispatch() error = %v, want ErrDeviceUnavailable", err)
	}

	got, err := st.GetTask(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.State != models.StatePrinted {
		t.Errorf("first task state = %q, want printed despite mid-batch failure", got.State)
	}
	if got.PrintedAt == nil {
		t.Error("printed_at not stamped")
	}
}

func TestDispatch_HonorsBatchSize(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	device := &fakePrinter{}
	d := NewDispatcher(st, device, 2, 32)

	for i := 0; i < 5; i++ {
		c := models.TaskCandidate{Title: fmt.Sprintf("Task number %d", i), SourceMessageID: fmt.Sprintf("m%d", i)}
		if _, err := st.Upsert(ctx, "sender@example.com", c); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	printed, err := d.Dispatch(ctx)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(printed) != 2 {
		t.Errorf("printed %d tasks, want batch of 2", len(printed))
	}
}
