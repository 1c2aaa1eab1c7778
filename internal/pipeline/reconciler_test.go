package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/josephgoksu/paperboy/internal/tracker"
	"github.com/josephgoksu/paperboy/models"
)

// fakeTracker is an in-memory tracker: CreateTask hands out sequential
// ids, GetStatus reads the statuses map.
type fakeTracker struct {
	mu       sync.Mutex
	created  int
	statuses map[string]tracker.Status
	failNext error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{statuses: make(map[string]tracker.Status)}
}

func (f *fakeTracker) CreateTask(_ context.Context, _ string, _ string, _ *time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return "", err
	}
	f.created++
	id := fmt.Sprintf("ext-%d", f.created)
	f.statuses[id] = tracker.StatusOpen
	return id, nil
}

func (f *fakeTracker) GetStatus(_ context.Context, externalID string) (tracker.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[externalID]
	if !ok {
		return "", errors.New("unknown external task")
	}
	return status, nil
}

func (f *fakeTracker) complete(externalID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[externalID] = tracker.StatusDone
}

func TestReconcile_PushesOpenRecordsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	trk := newFakeTracker()
	r := NewReconciler(st, trk)

	rec, err := st.Upsert(ctx, "bob@example.com", models.TaskCandidate{
		Title:           "Reply to Bob",
		SourceMessageID: "msg-001",
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Reconcile repeatedly: the external task must be created once.
	for i := 0; i < 5; i++ {
		if _, err := r.Reconcile(ctx); err != nil {
			t.Fatalf("Reconcile() #%d error = %v", i, err)
		}
	}
	if trk.created != 1 {
		t.Fatalf("tracker holds %d tasks after 5 reconciles, want 1", trk.created)
	}

	got, err := st.GetTask(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.ExternalTaskID != "ext-1" {
		t.Errorf("ExternalTaskID = %q, want ext-1", got.ExternalTaskID)
	}
}

func TestReconcile_CompletesWhenTrackerDone(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	trk := newFakeTracker()
	r := NewReconciler(st, trk)

	rec, err := st.Upsert(ctx, "bob@example.com", models.TaskCandidate{
		Title:           "Reply to Bob",
		SourceMessageID: "msg-001",
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if _, err := r.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	trk.complete("ext-1")

	updated, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}

	got, err := st.GetTask(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.State != models.StateCompleted {
		t.Errorf("state = %q, want completed", got.State)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}

	// Completed records leave the open set: no further polling churn.
	open, err := st.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen() error = %v", err)
	}
	if len(open) != 0 {
		t.Errorf("ListOpen() returned %d records, want 0", len(open))
	}
}

func TestReconcile_ContinuesPastTrackerFailure(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	trk := newFakeTracker()
	trk.failNext = errors.New("tracker is down")
	r := NewReconciler(st, trk)

	if _, err := st.Upsert(ctx, "a@example.com", models.TaskCandidate{Title: "First", SourceMessageID: "m1"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := st.Upsert(ctx, "b@example.com", models.TaskCandidate{Title: "Second", SourceMessageID: "m2"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// First create fails; the walk must still push the second record.
	updated, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}
	if trk.created != 1 {
		t.Errorf("tracker holds %d tasks, want 1", trk.created)
	}

	// Next run picks up the record the failure skipped.
	if _, err := r.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if trk.created != 2 {
		t.Errorf("tracker holds %d tasks after retry, want 2", trk.created)
	}
}
