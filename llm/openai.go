package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/josephgoksu/paperboy/models"
	"github.com/josephgoksu/paperboy/types"
)

const openAIChatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider implements the Provider interface against the OpenAI
// chat completions API with JSON-object response format.
type OpenAIProvider struct {
	apiKey  string
	timeout time.Duration
	debug   bool
	client  *http.Client
}

// NewOpenAIProvider creates a new OpenAIProvider with options.
func NewOpenAIProvider(apiKey string, timeout time.Duration, debug bool) *OpenAIProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		timeout: timeout,
		debug:   debug,
		client:  &http.Client{Timeout: timeout},
	}
}

// OpenAIRequestPayload defines the structure for the OpenAI API request.
type OpenAIRequestPayload struct {
	Model          string                `json:"model"`
	Messages       []OpenAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *OpenAIResponseFormat `json:"response_format,omitempty"`
}

// OpenAIResponseFormat specifies the output format for OpenAI (e.g., JSON object).
type OpenAIResponseFormat struct {
	Type string `json:"type"` // e.g., "json_object"
}

// OpenAIMessage defines a message in the conversation for OpenAI.
type OpenAIMessage struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// OpenAIResponsePayload defines the structure for the OpenAI API response.
type OpenAIResponsePayload struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   OpenAIUsage    `json:"usage"`
}

// OpenAIChoice defines a choice in the OpenAI response.
type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// OpenAIUsage defines token usage statistics from OpenAI.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// taskCandidateWire mirrors the JSON shape the prompt requests.
type taskCandidateWire struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"due_date"`
	Priority    string   `json:"priority"`
	Contacts    []string `json:"contacts"`
}

// taskResponseWrapper is used to unmarshal the JSON object returned by
// the model when response_format is json_object and the prompt requests
// a list of tasks.
type taskResponseWrapper struct {
	Tasks []taskCandidateWire `json:"tasks"`
}

// ExtractTasks sends one email to the model and decodes the candidates.
func (p *OpenAIProvider) ExtractTasks(ctx context.Context, email models.EmailRecord, modelName string, maxTokens int, temperature float64) ([]models.TaskCandidate, error) {
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	payload := OpenAIRequestPayload{
		Model: modelName,
		Messages: []OpenAIMessage{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: formatEmailPrompt(email)},
		},
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: &OpenAIResponseFormat{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatCompletionsURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("openai call: %w", types.ErrExtractionTimeout)
		}
		return nil, fmt.Errorf("openai call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if p.debug {
		fmt.Fprintf(os.Stderr, "openai response (%d): %s\n", resp.StatusCode, truncate(string(respBody), 2000))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var parsed OpenAIResponsePayload
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return decodeCandidates(parsed.Choices[0].Message.Content, email.MessageID)
}

// decodeCandidates parses the model's JSON content into candidates,
// attributing each to the source message. Model output is untrusted:
// a decode failure is an error, but per-field oddities (unknown
// priority, unparsable date) degrade softly.
func decodeCandidates(content, sourceMessageID string) ([]models.TaskCandidate, error) {
	var wrapper taskResponseWrapper
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &wrapper); err != nil {
		return nil, fmt.Errorf("decode task list: %w", err)
	}

	candidates := make([]models.TaskCandidate, 0, len(wrapper.Tasks))
	for _, w := range wrapper.Tasks {
		c := models.TaskCandidate{
			Title:           strings.TrimSpace(w.Title),
			Description:     strings.TrimSpace(w.Description),
			Priority:        models.ParsePriority(w.Priority),
			Contacts:        w.Contacts,
			SourceMessageID: sourceMessageID,
		}
		if due := parseDue(w.DueDate); due != nil {
			c.DueAt = due
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// parseDue accepts the two formats the prompt allows. Anything else is
// treated as "no deadline" rather than failing the whole extraction.
func parseDue(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t
	}
	return nil
}

func formatEmailPrompt(email models.EmailRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", email.Sender)
	fmt.Fprintf(&b, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&b, "Received: %s\n\n", email.ReceivedAt.Format(time.RFC3339))
	b.WriteString(email.Body)
	return b.String()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... [truncated]"
}
