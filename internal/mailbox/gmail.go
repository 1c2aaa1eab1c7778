package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/josephgoksu/paperboy/internal/googleauth"
	"github.com/josephgoksu/paperboy/internal/logger"
	"github.com/josephgoksu/paperboy/types"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const gmailUser = "me"

// Client fetches inbox messages through the Gmail API.
type Client struct {
	srv        *gmail.Service
	query      string
	fetchLimit int
}

// NewClient builds a Gmail client from saved OAuth credentials. Run the
// auth command first to obtain a token.
func NewClient(ctx context.Context, cfg types.MailboxConfig) (*Client, error) {
	httpClient, err := googleauth.HTTPClient(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	query := cfg.Query
	if query == "" {
		query = "in:inbox -in:draft"
	}
	limit := cfg.FetchLimit
	if limit <= 0 {
		limit = 25
	}
	return &Client{srv: srv, query: query, fetchLimit: limit}, nil
}

// FetchNewSince returns messages newer than the cursor plus the
// advanced cursor. The cursor is the internalDate high-water mark in
// epoch milliseconds; "" means no history, which fetches the most
// recent batch and establishes a baseline.
func (c *Client) FetchNewSince(ctx context.Context, cursor string) ([]RawMessage, string, error) {
	var since int64
	if cursor != "" {
		parsed, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, cursor, fmt.Errorf("invalid mailbox cursor %q: %w", cursor, err)
		}
		since = parsed
	}

	query := c.query
	if since > 0 {
		// Gmail's after: filter has second granularity; the exact
		// internalDate comparison below removes the overlap.
		query = fmt.Sprintf("%s after:%d", c.query, since/1000)
	}

	list, err := c.srv.Users.Messages.List(gmailUser).
		MaxResults(int64(c.fetchLimit)).
		Q(query).
		Context(ctx).
		Do()
	if err != nil {
		return nil, cursor, fmt.Errorf("list messages: %w", err)
	}

	newCursor := since
	var raw []RawMessage
	// The list endpoint returns newest first; walk backwards so callers
	// see messages in arrival order.
	for i := len(list.Messages) - 1; i >= 0; i-- {
		msg, err := c.srv.Users.Messages.Get(gmailUser, list.Messages[i].Id).
			Format("full").
			Context(ctx).
			Do()
		if err != nil {
			logger.Warn("unable to retrieve message", "id", list.Messages[i].Id, "error", err)
			continue
		}
		if msg.InternalDate <= since {
			continue
		}
		raw = append(raw, parseMessage(msg))
		if msg.InternalDate > newCursor {
			newCursor = msg.InternalDate
		}
	}

	if newCursor == since {
		return raw, cursor, nil
	}
	return raw, strconv.FormatInt(newCursor, 10), nil
}

func parseMessage(msg *gmail.Message) RawMessage {
	raw := RawMessage{
		ID:           msg.Id,
		InternalDate: msg.InternalDate,
	}
	if msg.Payload == nil {
		return raw
	}
	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			raw.Subject = header.Value
		case "From":
			raw.From = header.Value
		}
	}
	raw.Body = plainTextBody(msg.Payload)
	if raw.Body == "" {
		// Multipart messages with no text part still carry a snippet.
		raw.Body = msg.Snippet
	}
	return raw
}

func plainTextBody(payload *gmail.MessagePart) string {
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data)
		}
		logger.Warn("unable to decode message body", "error", err)
	}
	for _, part := range payload.Parts {
		if strings.HasPrefix(strings.ToLower(part.MimeType), "text/") ||
			strings.HasPrefix(strings.ToLower(part.MimeType), "multipart/") {
			if body := plainTextBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}
