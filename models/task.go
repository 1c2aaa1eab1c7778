package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TaskState represents the lifecycle state of a task record.
type TaskState string

const (
	StatePending   TaskState = "pending"
	StatePrinted   TaskState = "printed"
	StateCompleted TaskState = "completed"
)

// TaskPriority represents the priority levels of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Rank maps a priority to a comparable weight. Unknown values rank as normal.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 1
	}
}

// HigherPriority returns whichever of a and b outranks the other.
// Merging duplicate tasks keeps the stronger signal.
func HigherPriority(a, b TaskPriority) TaskPriority {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParsePriority maps free-form model output onto the priority enum.
// Anything unrecognized falls back to normal rather than failing the
// candidate; priority is advisory, not identity.
func ParsePriority(s string) TaskPriority {
	switch TaskPriority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	case PriorityUrgent:
		return PriorityUrgent
	case "medium": // common model synonym
		return PriorityNormal
	default:
		return PriorityNormal
	}
}

// EmailRecord is the canonical form of one fetched mailbox message.
// It is immutable and retained only long enough to extract tasks.
type EmailRecord struct {
	MessageID  string    `json:"messageId" validate:"required"`
	Sender     string    `json:"sender" validate:"required"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body" validate:"required"`
	ReceivedAt time.Time `json:"receivedAt" validate:"required"`
}

// TaskCandidate is an unvalidated task extracted from one email. It is
// never persisted directly: the store either absorbs it into an
// existing record or promotes it to a new one. Candidates carry no
// identity of their own; the extractor is not trusted to assign ids.
type TaskCandidate struct {
	Title           string       `json:"title" validate:"required,min=1,max=255"`
	Description     string       `json:"description,omitempty"`
	DueAt           *time.Time   `json:"dueAt,omitempty"`
	Priority        TaskPriority `json:"priority" validate:"required,oneof=low normal high urgent"`
	Contacts        []string     `json:"contacts,omitempty"`
	SourceMessageID string       `json:"sourceMessageId" validate:"required"`
}

// TaskRecord is the durable task entity.
//
// Invariants, enforced by the store:
//   - Fingerprint is unique among non-completed records.
//   - A completed record is immutable.
//   - PrintedAt is set at most once.
//   - ExternalTaskID, once set, never changes.
type TaskRecord struct {
	ID               string       `json:"id" validate:"required,uuid4"`
	Fingerprint      string       `json:"fingerprint" validate:"required"`
	Title            string       `json:"title" validate:"required,min=1,max=255"`
	Description      string       `json:"description,omitempty"`
	Sender           string       `json:"sender" validate:"required"`
	DueAt            *time.Time   `json:"dueAt,omitempty"`
	Priority         TaskPriority `json:"priority" validate:"required,oneof=low normal high urgent"`
	Contacts         []string     `json:"contacts,omitempty"`
	SourceMessageIDs []string     `json:"sourceMessageIds"`
	State            TaskState    `json:"state" validate:"required,oneof=pending printed completed"`
	ExternalTaskID   string       `json:"externalTaskId,omitempty"`
	CreatedAt        time.Time    `json:"createdAt" validate:"required"`
	PrintedAt        *time.Time   `json:"printedAt,omitempty"`
	CompletedAt      *time.Time   `json:"completedAt,omitempty"`
}

// ExtractionFailure records an email whose extraction exhausted its
// retries, so a human can find and reprocess it.
type ExtractionFailure struct {
	MessageID  string    `json:"messageId"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

// global validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct performs validation on any struct that has validation tags.
func ValidateStruct(s interface{}) error {
	if validate == nil {
		validate = validator.New()
	}
	err := validate.Struct(s)
	if err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, fmt.Sprintf("Validation failed on field '%s': rule '%s' (value: '%v')", e.StructNamespace(), e.Tag(), e.Value()))
		}
		return fmt.Errorf("%s", strings.Join(errorMessages, "; "))
	}
	return nil
}
