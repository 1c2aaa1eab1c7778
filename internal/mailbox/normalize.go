package mailbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/paperboy/models"
	"github.com/josephgoksu/paperboy/types"
)

// Normalize converts a raw mailbox message into the canonical
// EmailRecord. It is pure and idempotent: normalizing the same raw
// message twice yields identical field values, which makes re-fetching
// after a crash safe. Messages missing an id, sender or body fail with
// types.ErrMalformedEmail and are skipped, not retried.
func Normalize(raw RawMessage) (models.EmailRecord, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return models.EmailRecord{}, fmt.Errorf("missing message id: %w", types.ErrMalformedEmail)
	}
	sender := strings.TrimSpace(raw.From)
	if sender == "" {
		return models.EmailRecord{}, fmt.Errorf("message %s missing sender: %w", id, types.ErrMalformedEmail)
	}
	body := strings.TrimSpace(raw.Body)
	if body == "" {
		return models.EmailRecord{}, fmt.Errorf("message %s missing body: %w", id, types.ErrMalformedEmail)
	}

	received := time.UnixMilli(raw.InternalDate).UTC()
	if raw.InternalDate <= 0 {
		return models.EmailRecord{}, fmt.Errorf("message %s missing timestamp: %w", id, types.ErrMalformedEmail)
	}

	return models.EmailRecord{
		MessageID:  id,
		Sender:     extractAddress(sender),
		Subject:    strings.TrimSpace(raw.Subject),
		Body:       body,
		ReceivedAt: received,
	}, nil
}

// extractAddress reduces a display-name header ("Bob <bob@x.com>") to
// the bare address, so the same correspondent always fingerprints the
// same way regardless of client formatting.
func extractAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start != -1 {
		if end := strings.LastIndex(from, ">"); end > start {
			return strings.TrimSpace(from[start+1 : end])
		}
	}
	return strings.TrimSpace(from)
}
