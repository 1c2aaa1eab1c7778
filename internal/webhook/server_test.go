package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephgoksu/paperboy/models"
	"github.com/josephgoksu/paperboy/store"
)

func newTestServer(t *testing.T) (*Server, store.TaskStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewServer(st), st
}

func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}
}

func TestMissedCall_CreatesHighPriorityTask(t *testing.T) {
	s, st := newTestServer(t)

	w := postJSON(t, s, "/missed_call", `{"caller":"Bob","number":"+15551234567","occurred_at":"2025-06-02T09:00:00Z","source":"ifttt"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /missed_call = %d, want 201: %s", w.Code, w.Body.String())
	}

	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rec, err := st.GetTask(context.Background(), resp.TaskID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if rec.Title != "Return missed call from Bob" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.Priority != models.PriorityHigh {
		t.Errorf("priority = %q, want high", rec.Priority)
	}
	if rec.Sender != "+15551234567" {
		t.Errorf("sender = %q, want the number", rec.Sender)
	}
	if len(rec.Contacts) != 1 || rec.Contacts[0] != "+15551234567" {
		t.Errorf("contacts = %v", rec.Contacts)
	}
}

func TestMissedCall_RepeatCallsMerge(t *testing.T) {
	s, st := newTestServer(t)

	body := `{"caller":"Bob","number":"+15551234567"}`
	for i := 0; i < 3; i++ {
		if w := postJSON(t, s, "/missed_call", body); w.Code != http.StatusCreated {
			t.Fatalf("POST #%d = %d, want 201", i, w.Code)
		}
	}

	all, err := st.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("three calls from one number produced %d records, want 1", len(all))
	}
	if len(all[0].SourceMessageIDs) == 0 {
		t.Error("merged record lost its provenance")
	}
}

func TestMissedCall_RejectsMissingNumber(t *testing.T) {
	s, st := newTestServer(t)

	w := postJSON(t, s, "/missed_call", `{"caller":"Bob"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST without number = %d, want 400", w.Code)
	}

	all, err := st.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("rejected request created %d records", len(all))
	}
}
