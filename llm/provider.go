package llm

import (
	"context"

	"github.com/josephgoksu/paperboy/models"
)

// Provider defines the interface for the extraction capability:
// classify one normalized email into zero or more structured task
// candidates. Implementations call an external model and must be
// treated as non-deterministic; they never assign task identity and
// never decide deduplication, which belong to the store.
type Provider interface {
	// ExtractTasks sends the email to the model and returns the
	// candidates it proposes, already attributed to the email's message
	// id. An empty slice is a valid outcome (not every email contains
	// action items). Timeouts surface as types.ErrExtractionTimeout.
	ExtractTasks(ctx context.Context, email models.EmailRecord, modelName string, maxTokens int, temperature float64) ([]models.TaskCandidate, error)
}
