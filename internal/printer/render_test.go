package printer

import (
	"strings"
	"testing"
	"time"

	"github.com/josephgoksu/paperboy/models"
)

func sampleRecord() models.TaskRecord {
	due := time.Date(2025, 6, 6, 17, 0, 0, 0, time.UTC)
	return models.TaskRecord{
		ID:          "3f1c8a9e-0000-4000-8000-000000000001",
		Title:       "Reply to Bob about the quarterly report before the board meeting",
		Description: "He needs the final numbers.",
		Sender:      "bob@example.com",
		Priority:    models.PriorityUrgent,
		Contacts:    []string{"bob@example.com"},
		DueAt:       &due,
		State:       models.StatePending,
	}
}

func TestRenderReceipt_WidthRespected(t *testing.T) {
	out := string(RenderReceipt(sampleRecord(), 32))
	for _, line := range strings.Split(out, "\n") {
		if len(line) > 32 {
			t.Errorf("line exceeds paper width: %q (%d chars)", line, len(line))
		}
	}
}

func TestRenderReceipt_Contents(t *testing.T) {
	rec := sampleRecord()
	out := string(RenderReceipt(rec, 32))

	for _, want := range []string{
		"TASK BRIEFING",
		"!!! URGENT !!!",
		"FROM: bob@example.com",
		"PEOPLE INVOLVED:",
		"DEADLINE: Fri 06 Jun 17:00",
		rec.ID,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("receipt missing %q\n%s", want, out)
		}
	}
}

func TestRenderReceipt_NoDueDate(t *testing.T) {
	rec := sampleRecord()
	rec.DueAt = nil
	rec.Priority = models.PriorityNormal
	out := string(RenderReceipt(rec, 32))
	if !strings.Contains(out, "DEADLINE: ASAP") {
		t.Error("missing ASAP deadline for records without a due date")
	}
	if !strings.Contains(out, "URGENCY: normal") {
		t.Error("missing normal urgency marker")
	}
}

func TestWrap(t *testing.T) {
	lines := wrap("one two three four five six seven", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("wrapped line too long: %q", l)
		}
	}
	joined := strings.Join(lines, " ")
	if joined != "one two three four five six seven" {
		t.Errorf("wrap lost words: %q", joined)
	}

	long := wrap("antidisestablishmentarianism", 10)
	for _, l := range long {
		if len(l) > 10 {
			t.Errorf("hard break failed: %q", l)
		}
	}
}
