package mailbox

import (
	"errors"
	"testing"
	"time"

	"github.com/josephgoksu/paperboy/types"
)

func validRaw() RawMessage {
	return RawMessage{
		ID:           "m1",
		From:         "Bob Jones <bob@example.com>",
		Subject:      "Quarterly report",
		Body:         "Please reply by Friday.",
		InternalDate: 1750000000000,
	}
}

func TestNormalize(t *testing.T) {
	rec, err := Normalize(validRaw())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if rec.MessageID != "m1" {
		t.Errorf("message id = %q", rec.MessageID)
	}
	if rec.Sender != "bob@example.com" {
		t.Errorf("sender = %q, want bare address", rec.Sender)
	}
	if rec.Subject != "Quarterly report" {
		t.Errorf("subject = %q", rec.Subject)
	}
	want := time.UnixMilli(1750000000000).UTC()
	if !rec.ReceivedAt.Equal(want) {
		t.Errorf("receivedAt = %v, want %v", rec.ReceivedAt, want)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := validRaw()
	a, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	b, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if a != b {
		t.Errorf("normalizing the same message twice differed: %+v vs %+v", a, b)
	}
}

func TestNormalize_Malformed(t *testing.T) {
	cases := map[string]func(*RawMessage){
		"missing id":        func(r *RawMessage) { r.ID = "" },
		"missing sender":    func(r *RawMessage) { r.From = "  " },
		"missing body":      func(r *RawMessage) { r.Body = "" },
		"missing timestamp": func(r *RawMessage) { r.InternalDate = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			raw := validRaw()
			mutate(&raw)
			_, err := Normalize(raw)
			if !errors.Is(err, types.ErrMalformedEmail) {
				t.Errorf("err = %v, want ErrMalformedEmail", err)
			}
		})
	}
}

func TestExtractAddress(t *testing.T) {
	cases := map[string]string{
		"Bob <bob@x.com>":         "bob@x.com",
		"bob@x.com":               "bob@x.com",
		"\"Jones, Bob\" <b@x.co>": "b@x.co",
		"Broken <b@x.co":          "Broken <b@x.co",
	}
	for in, want := range cases {
		if got := extractAddress(in); got != want {
			t.Errorf("extractAddress(%q) = %q, want %q", in, got, want)
		}
	}
}
