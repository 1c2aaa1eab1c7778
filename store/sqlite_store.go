package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/josephgoksu/paperboy/models"
	"github.com/josephgoksu/paperboy/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements TaskStore using SQLite for persistence.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the task database at path.
// ":memory:" yields an ephemeral store for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serializes all writers, which is what makes
	// the check-fingerprint-then-create sequence atomic. It also keeps
	// ":memory:" databases from fragmenting across pool connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// initSchema creates the database tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		sender TEXT NOT NULL,
		due_at TEXT,
		priority TEXT NOT NULL DEFAULT 'normal',
		contacts TEXT NOT NULL DEFAULT '[]',           -- JSON array
		source_message_ids TEXT NOT NULL DEFAULT '[]', -- JSON array, provenance
		state TEXT NOT NULL DEFAULT 'pending',
		external_task_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		printed_at TEXT,
		completed_at TEXT
	);

	-- The dedup invariant: one live record per fingerprint. Completed
	-- records drop out of the constraint so history accumulates.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_fingerprint_open
		ON tasks(fingerprint) WHERE state != 'completed';

	CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);

	CREATE TABLE IF NOT EXISTS pipeline_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS extraction_failures (
		message_id TEXT PRIMARY KEY,
		reason TEXT NOT NULL,
		occurred_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const taskColumns = `id, fingerprint, title, description, sender, due_at, priority,
	contacts, source_message_ids, state, external_task_id, created_at, printed_at, completed_at`

func scanTask(row interface{ Scan(...any) error }) (models.TaskRecord, error) {
	var (
		rec                           models.TaskRecord
		dueAt, printedAt, completedAt sql.NullString
		contactsJSON, sourceIDsJSON   string
		createdAt                     string
	)
	err := row.Scan(&rec.ID, &rec.Fingerprint, &rec.Title, &rec.Description, &rec.Sender,
		&dueAt, &rec.Priority, &contactsJSON, &sourceIDsJSON, &rec.State,
		&rec.ExternalTaskID, &createdAt, &printedAt, &completedAt)
	if err != nil {
		return rec, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return rec, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.DueAt, err = parseNullTime(dueAt); err != nil {
		return rec, fmt.Errorf("parse due_at: %w", err)
	}
	if rec.PrintedAt, err = parseNullTime(printedAt); err != nil {
		return rec, fmt.Errorf("parse printed_at: %w", err)
	}
	if rec.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return rec, fmt.Errorf("parse completed_at: %w", err)
	}
	if err := json.Unmarshal([]byte(contactsJSON), &rec.Contacts); err != nil {
		return rec, fmt.Errorf("decode contacts: %w", err)
	}
	if err := json.Unmarshal([]byte(sourceIDsJSON), &rec.SourceMessageIDs); err != nil {
		return rec, fmt.Errorf("decode source message ids: %w", err)
	}
	return rec, nil
}

// Upsert implements the fingerprint-based merge-or-create contract.
func (s *SQLiteStore) Upsert(ctx context.Context, sender string, candidate models.TaskCandidate) (models.TaskRecord, error) {
	if candidate.Priority == "" {
		candidate.Priority = models.PriorityNormal
	}
	if err := models.ValidateStruct(candidate); err != nil {
		return models.TaskRecord{}, fmt.Errorf("invalid candidate: %w", err)
	}
	fp := Fingerprint(candidate.Title, sender, candidate.DueAt)

	rec, err := s.upsertOnce(ctx, fp, sender, candidate)
	if err != nil && isUniqueViolation(err) {
		// Lost a create race against a concurrent upsert of the same
		// fingerprint; the record exists now, so this pass merges.
		rec, err = s.upsertOnce(ctx, fp, sender, candidate)
	}
	return rec, err
}

func (s *SQLiteStore) upsertOnce(ctx context.Context, fp, sender string, candidate models.TaskCandidate) (models.TaskRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.TaskRecord{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE fingerprint = ? AND state != 'completed'`, fp)
	existing, err := scanTask(row)
	switch {
	case err == nil:
		merged, mergeErr := s.merge(ctx, tx, existing, candidate)
		if mergeErr != nil {
			return models.TaskRecord{}, mergeErr
		}
		if commitErr := tx.Commit(); commitErr != nil {
			return models.TaskRecord{}, fmt.Errorf("commit merge: %w", commitErr)
		}
		return merged, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to the completed check and create path
	default:
		return models.TaskRecord{}, fmt.Errorf("lookup fingerprint: %w", err)
	}

	// A completed record with this fingerprint absorbs the candidate
	// without reopening: completed is terminal and immutable.
	row = tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE fingerprint = ? AND state = 'completed'
		 ORDER BY completed_at DESC LIMIT 1`, fp)
	done, err := scanTask(row)
	if err == nil {
		return done, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.TaskRecord{}, fmt.Errorf("lookup completed fingerprint: %w", err)
	}

	now := time.Now().UTC()
	rec := models.TaskRecord{
		ID:               uuid.NewString(),
		Fingerprint:      fp,
		Title:            candidate.Title,
		Description:      candidate.Description,
		Sender:           sender,
		DueAt:            candidate.DueAt,
		Priority:         candidate.Priority,
		Contacts:         dedupeStrings(candidate.Contacts),
		SourceMessageIDs: []string{candidate.SourceMessageID},
		State:            models.StatePending,
		CreatedAt:        now,
	}
	contactsJSON, sourceIDsJSON, err := encodeLists(rec.Contacts, rec.SourceMessageIDs)
	if err != nil {
		return models.TaskRecord{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (id, fingerprint, title, description, sender, due_at, priority,
			contacts, source_message_ids, state, external_task_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?)`,
		rec.ID, rec.Fingerprint, rec.Title, rec.Description, rec.Sender,
		formatNullTime(rec.DueAt), rec.Priority, contactsJSON, sourceIDsJSON,
		rec.State, formatTime(rec.CreatedAt))
	if err != nil {
		return models.TaskRecord{}, fmt.Errorf("create task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.TaskRecord{}, fmt.Errorf("commit create: %w", err)
	}
	return rec, nil
}

// merge folds a duplicate candidate into an existing live record: the
// task id and state are kept, priority rises to the higher of the two,
// the due date only tightens, and provenance accumulates. A printed
// record stays printed; tightening its due date does not re-queue it.
func (s *SQLiteStore) merge(ctx context.Context, tx *sql.Tx, existing models.TaskRecord, candidate models.TaskCandidate) (models.TaskRecord, error) {
	existing.Priority = models.HigherPriority(existing.Priority, candidate.Priority)
	if candidate.DueAt != nil && (existing.DueAt == nil || candidate.DueAt.Before(*existing.DueAt)) {
		existing.DueAt = candidate.DueAt
	}
	if existing.Description == "" && candidate.Description != "" {
		existing.Description = candidate.Description
	}
	existing.Contacts = dedupeStrings(append(existing.Contacts, candidate.Contacts...))
	if !containsString(existing.SourceMessageIDs, candidate.SourceMessageID) {
		existing.SourceMessageIDs = append(existing.SourceMessageIDs, candidate.SourceMessageID)
	}

	contactsJSON, sourceIDsJSON, err := encodeLists(existing.Contacts, existing.SourceMessageIDs)
	if err != nil {
		return models.TaskRecord{}, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET priority = ?, due_at = ?, description = ?, contacts = ?, source_message_ids = ?
		 WHERE id = ?`,
		existing.Priority, formatNullTime(existing.DueAt), existing.Description,
		contactsJSON, sourceIDsJSON, existing.ID)
	if err != nil {
		return models.TaskRecord{}, fmt.Errorf("merge task %s: %w", existing.ID, err)
	}
	return existing, nil
}

// GetTask retrieves a task by id.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (models.TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	rec, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TaskRecord{}, fmt.Errorf("task %s: %w", id, types.ErrTaskNotFound)
	}
	if err != nil {
		return models.TaskRecord{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return rec, nil
}

// MarkPrinted transitions a record to printed, stamping printed_at once.
func (s *SQLiteStore) MarkPrinted(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark printed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var state string
	var printedAt sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT state, printed_at FROM tasks WHERE id = ?`, id).
		Scan(&state, &printedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("task %s: %w", id, types.ErrTaskNotFound)
	}
	if err != nil {
		return fmt.Errorf("mark printed %s: %w", id, err)
	}
	if models.TaskState(state) == models.StateCompleted {
		return fmt.Errorf("task %s: %w", id, types.ErrCompletedImmutable)
	}
	if printedAt.Valid {
		return fmt.Errorf("task %s: %w", id, types.ErrAlreadyPrinted)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET state = ?, printed_at = ? WHERE id = ?`,
		models.StatePrinted, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("mark printed %s: %w", id, err)
	}
	return tx.Commit()
}

// MarkCompleted is the terminal transition, allowed from any state.
func (s *SQLiteStore) MarkCompleted(ctx context.Context, id string, externalID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark completed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var state, storedExternal string
	err = tx.QueryRowContext(ctx, `SELECT state, external_task_id FROM tasks WHERE id = ?`, id).
		Scan(&state, &storedExternal)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("task %s: %w", id, types.ErrTaskNotFound)
	}
	if err != nil {
		return fmt.Errorf("mark completed %s: %w", id, err)
	}
	if models.TaskState(state) == models.StateCompleted {
		return nil
	}
	if storedExternal == "" {
		storedExternal = externalID
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET state = ?, completed_at = ?, external_task_id = ? WHERE id = ?`,
		models.StateCompleted, formatTime(time.Now().UTC()), storedExternal, id)
	if err != nil {
		return fmt.Errorf("mark completed %s: %w", id, err)
	}
	return tx.Commit()
}

// SetExternalID stores the tracker link, write-once.
func (s *SQLiteStore) SetExternalID(ctx context.Context, id string, externalID string) error {
	if externalID == "" {
		return fmt.Errorf("external id for task %s must not be empty", id)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set external id: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var state, stored string
	err = tx.QueryRowContext(ctx, `SELECT state, external_task_id FROM tasks WHERE id = ?`, id).
		Scan(&state, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("task %s: %w", id, types.ErrTaskNotFound)
	}
	if err != nil {
		return fmt.Errorf("set external id %s: %w", id, err)
	}
	if stored == externalID {
		return nil
	}
	if stored != "" {
		return fmt.Errorf("task %s has external id %s: %w", id, stored, types.ErrExternalIDSet)
	}
	if models.TaskState(state) == models.StateCompleted {
		return fmt.Errorf("task %s: %w", id, types.ErrCompletedImmutable)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET external_task_id = ? WHERE id = ?`, externalID, id); err != nil {
		return fmt.Errorf("set external id %s: %w", id, err)
	}
	return tx.Commit()
}

// ListPendingForPrint returns the print queue in delivery order.
func (s *SQLiteStore) ListPendingForPrint(ctx context.Context, limit int) ([]models.TaskRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE state = 'pending'
		 ORDER BY
			CASE priority WHEN 'urgent' THEN 3 WHEN 'high' THEN 2 WHEN 'normal' THEN 1 ELSE 0 END DESC,
			CASE WHEN due_at IS NULL THEN 1 ELSE 0 END ASC,
			due_at ASC,
			created_at ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return collectTasks(rows)
}

// ListOpen returns all non-completed records.
func (s *SQLiteStore) ListOpen(ctx context.Context) ([]models.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE state != 'completed' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list open: %w", err)
	}
	return collectTasks(rows)
}

// ListTasks returns the full audit trail, newest first.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]models.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

const cursorKey = "mailbox_cursor"

// Cursor returns the persisted mailbox high-water mark.
func (s *SQLiteStore) Cursor(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM pipeline_state WHERE key = ?`, cursorKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cursor: %w", err)
	}
	return value, nil
}

// SetCursor persists the mailbox high-water mark.
func (s *SQLiteStore) SetCursor(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, cursorKey, value)
	if err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return nil
}

// RecordExtractionFailure notes a message whose extraction gave up.
func (s *SQLiteStore) RecordExtractionFailure(ctx context.Context, messageID, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_failures (message_id, reason, occurred_at) VALUES (?, ?, ?)
		 ON CONFLICT(message_id) DO UPDATE SET reason = excluded.reason, occurred_at = excluded.occurred_at`,
		messageID, reason, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("record extraction failure for %s: %w", messageID, err)
	}
	return nil
}

// ListExtractionFailures returns recorded failures, oldest first.
func (s *SQLiteStore) ListExtractionFailures(ctx context.Context) ([]models.ExtractionFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, reason, occurred_at FROM extraction_failures ORDER BY occurred_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list extraction failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var failures []models.ExtractionFailure
	for rows.Next() {
		var f models.ExtractionFailure
		var occurredAt string
		if err := rows.Scan(&f.MessageID, &f.Reason, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan extraction failure: %w", err)
		}
		if f.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, fmt.Errorf("parse failure time: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// ClearExtractionFailure drops a failure entry after reprocessing.
func (s *SQLiteStore) ClearExtractionFailure(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM extraction_failures WHERE message_id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("clear extraction failure for %s: %w", messageID, err)
	}
	return nil
}

func collectTasks(rows *sql.Rows) ([]models.TaskRecord, error) {
	defer func() { _ = rows.Close() }()
	var tasks []models.TaskRecord
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, rec)
	}
	return tasks, rows.Err()
}

func encodeLists(contacts, sourceIDs []string) (string, string, error) {
	if contacts == nil {
		contacts = []string{}
	}
	if sourceIDs == nil {
		sourceIDs = []string{}
	}
	cj, err := json.Marshal(contacts)
	if err != nil {
		return "", "", fmt.Errorf("encode contacts: %w", err)
	}
	sj, err := json.Marshal(sourceIDs)
	if err != nil {
		return "", "", fmt.Errorf("encode source message ids: %w", err)
	}
	return string(cj), string(sj), nil
}

func dedupeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func containsString(in []string, want string) bool {
	for _, s := range in {
		if s == want {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
