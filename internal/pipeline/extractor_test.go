package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/josephgoksu/paperboy/models"
	"github.com/josephgoksu/paperboy/store"
	"github.com/josephgoksu/paperboy/types"
)

func newTestStore(t *testing.T) store.TaskStore {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// fakeProvider fails the first failTimes calls, then returns its
// canned candidates.
type fakeProvider struct {
	mu         sync.Mutex
	calls      int
	failTimes  int
	failErr    error
	candidates []models.TaskCandidate
}

func (p *fakeProvider) ExtractTasks(_ context.Context, _ models.EmailRecord, _ string, _ int, _ float64) ([]models.TaskCandidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failTimes {
		err := p.failErr
		if err == nil {
			err = errors.New("transient provider failure")
		}
		return nil, err
	}
	return p.candidates, nil
}

func testEmail() models.EmailRecord {
	return models.EmailRecord{
		MessageID:  "msg-001",
		Sender:     "bob@example.com",
		Subject:    "quarterly report",
		Body:       "Can you reply to Bob by Friday?",
		ReceivedAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}
}

func newTestExtractor(provider *fakeProvider, st store.TaskStore, maxRetries int) *Extractor {
	e := NewExtractor(provider, st, types.LLMConfig{
		ModelName:             "gpt-4o-mini",
		MaxRetries:            maxRetries,
		RequestTimeoutSeconds: 5,
	}, 24*time.Hour)
	e.backoffBase = time.Millisecond
	return e
}

func TestExtract_SetsSourceMessageID(t *testing.T) {
	st := newTestStore(t)
	provider := &fakeProvider{candidates: []models.TaskCandidate{{Title: "Reply to Bob"}}}
	e := newTestExtractor(provider, st, 0)

	got, err := e.Extract(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].SourceMessageID != "msg-001" {
		t.Errorf("SourceMessageID = %q, want msg-001", got[0].SourceMessageID)
	}
}

func TestExtract_RetriesThenSucceeds(t *testing.T) {
	st := newTestStore(t)
	provider := &fakeProvider{
		failTimes:  2,
		candidates: []models.TaskCandidate{{Title: "Reply to Bob"}},
	}
	e := newTestExtractor(provider, st, 3)

	got, err := e.Extract(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Extract() error after retries = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if provider.calls != 3 {
		t.Errorf("provider called %d times, want 3", provider.calls)
	}

	failures, err := st.ListExtractionFailures(context.Background())
	if err != nil {
		t.Fatalf("ListExtractionFailures() error = %v", err)
	}
	if len(failures) != 0 {
		t.Errorf("no failure should be recorded on eventual success, got %d", len(failures))
	}
}

func TestExtract_ExhaustedRetriesRecordsFailure(t *testing.T) {
	st := newTestStore(t)
	provider := &fakeProvider{failTimes: 100, failErr: errors.New("model unavailable")}
	e := newTestExtractor(provider, st, 2)

	_, err := e.Extract(context.Background(), testEmail())
	if !errors.Is(err, types.ErrExtractionFailed) {
		t.Fatalf("Extract() error = %v, want ErrExtractionFailed", err)
	}
	if provider.calls != 3 {
		t.Errorf("provider called %d times, want 3 (1 + 2 retries)", provider.calls)
	}

	failures, err := st.ListExtractionFailures(context.Background())
	if err != nil {
		t.Fatalf("ListExtractionFailures() error = %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", len(failures))
	}
	if failures[0].MessageID != "msg-001" {
		t.Errorf("failure message id = %q, want msg-001", failures[0].MessageID)
	}
}

func TestExtract_ValidationDropsBadCandidates(t *testing.T) {
	st := newTestStore(t)
	stale := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) // a month before receipt
	fresh := time.Date(2025, 6, 6, 17, 0, 0, 0, time.UTC)
	provider := &fakeProvider{candidates: []models.TaskCandidate{
		{Title: ""},
		{Title: "Stale task", DueAt: &stale},
		{Title: "Reply to Bob", DueAt: &fresh},
	}}
	e := newTestExtractor(provider, st, 0)

	got, err := e.Extract(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 surviving candidate, got %d", len(got))
	}
	if got[0].Title != "Reply to Bob" {
		t.Errorf("wrong survivor: %q", got[0].Title)
	}
}

func TestExtract_DueWithinGraceKept(t *testing.T) {
	st := newTestStore(t)
	email := testEmail()
	slightlyPast := email.ReceivedAt.Add(-time.Hour)
	provider := &fakeProvider{candidates: []models.TaskCandidate{
		{Title: "Almost late", DueAt: &slightlyPast},
	}}
	e := newTestExtractor(provider, st, 0)

	got, err := e.Extract(context.Background(), email)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("candidate within the grace window was dropped")
	}
}
