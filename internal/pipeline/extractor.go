// Package pipeline composes the extraction, deduplication,
// reconciliation and print stages into the repeating cycle that turns
// inbound email into printed, trackable tasks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/josephgoksu/paperboy/internal/logger"
	"github.com/josephgoksu/paperboy/llm"
	"github.com/josephgoksu/paperboy/models"
	"github.com/josephgoksu/paperboy/store"
	"github.com/josephgoksu/paperboy/types"
)

// Extractor wraps the model provider with the caller-side contract:
// bounded latency, bounded retries with exponential backoff, and
// output validation. A message whose extraction exhausts its retries
// is recorded in the store so it stays observable for reprocessing.
type Extractor struct {
	provider    llm.Provider
	tasks       store.TaskStore
	modelName   string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	maxRetries  int
	grace       time.Duration
	backoffBase time.Duration
}

// NewExtractor builds an extractor from the LLM configuration. grace
// is how far in the past a candidate's due date may lie relative to
// the email's receipt before the candidate is discarded.
func NewExtractor(provider llm.Provider, tasks store.TaskStore, cfg types.LLMConfig, grace time.Duration) *Extractor {
	timeout := 60 * time.Second
	if cfg.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	return &Extractor{
		provider:    provider,
		tasks:       tasks,
		modelName:   modelName,
		maxTokens:   cfg.MaxOutputTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		maxRetries:  cfg.MaxRetries,
		grace:       grace,
		backoffBase: time.Second,
	}
}

// Extract runs the model on one email and returns validated
// candidates. On exhausted retries it records the failure and returns
// an error wrapping types.ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, email models.EmailRecord) ([]models.TaskCandidate, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := e.backoffBase << (attempt - 1)
			logger.Debug("retrying extraction", "message", email.MessageID, "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = e.maxRetries // give up, fall through to failure recording
			}
			if ctx.Err() != nil {
				break
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		candidates, err := e.provider.ExtractTasks(callCtx, email, e.modelName, e.maxTokens, e.temperature)
		cancel()
		if err == nil {
			return e.validate(email, candidates), nil
		}
		lastErr = err
		if errors.Is(err, types.ErrExtractionTimeout) {
			logger.Warn("extraction timed out", "message", email.MessageID, "attempt", attempt)
		} else {
			logger.Warn("extraction attempt failed", "message", email.MessageID, "attempt", attempt, "error", err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	reason := "unknown failure"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	if recErr := e.tasks.RecordExtractionFailure(ctx, email.MessageID, reason); recErr != nil {
		return nil, errors.Join(
			fmt.Errorf("message %s: %w: %s", email.MessageID, types.ErrExtractionFailed, reason),
			fmt.Errorf("additionally failed to record the failure: %w", recErr),
		)
	}
	return nil, fmt.Errorf("message %s: %w: %s", email.MessageID, types.ErrExtractionFailed, reason)
}

// validate discards candidates the store must never see: missing
// titles, and due dates further in the past (relative to the email's
// receipt) than the grace window allows.
func (e *Extractor) validate(email models.EmailRecord, candidates []models.TaskCandidate) []models.TaskCandidate {
	kept := make([]models.TaskCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Title == "" {
			logger.Debug("discarding candidate without title", "message", email.MessageID)
			continue
		}
		if c.DueAt != nil && c.DueAt.Before(email.ReceivedAt.Add(-e.grace)) {
			logger.Debug("discarding candidate with stale due date",
				"message", email.MessageID, "title", c.Title, "due", c.DueAt)
			continue
		}
		c.SourceMessageID = email.MessageID
		kept = append(kept, c)
	}
	return kept
}
