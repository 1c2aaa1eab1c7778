package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/josephgoksu/paperboy/internal/googleauth"
	"github.com/josephgoksu/paperboy/types"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

// GoogleTasksClient implements Tracker against the Google Tasks API.
type GoogleTasksClient struct {
	srv        *tasks.Service
	taskListID string
}

// NewGoogleTasksClient builds a tracker client from saved OAuth
// credentials, targeting the configured task list.
func NewGoogleTasksClient(ctx context.Context, mailCfg types.MailboxConfig, cfg types.TrackerConfig) (*GoogleTasksClient, error) {
	httpClient, err := googleauth.HTTPClient(ctx, mailCfg.CredentialsFile, mailCfg.TokenFile)
	if err != nil {
		return nil, err
	}
	srv, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Tasks service: %w", err)
	}

	listID := cfg.TaskListID
	if listID == "" {
		listID = "@default"
	}
	return &GoogleTasksClient{srv: srv, taskListID: listID}, nil
}

// CreateTask creates the counterpart Google task and returns its id.
func (c *GoogleTasksClient) CreateTask(ctx context.Context, title string, notes string, dueAt *time.Time) (string, error) {
	t := &tasks.Task{
		Title: title,
		Notes: notes,
	}
	if dueAt != nil {
		t.Due = dueAt.UTC().Format(time.RFC3339)
	}
	created, err := c.srv.Tasks.Insert(c.taskListID, t).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create external task: %w", err)
	}
	return created.Id, nil
}

// GetStatus reports completion of the external task.
func (c *GoogleTasksClient) GetStatus(ctx context.Context, externalID string) (Status, error) {
	t, err := c.srv.Tasks.Get(c.taskListID, externalID).Context(ctx).Do()
	if err != nil {
		return StatusOpen, fmt.Errorf("get external task %s: %w", externalID, err)
	}
	if t.Status == "completed" {
		return StatusDone, nil
	}
	return StatusOpen, nil
}
