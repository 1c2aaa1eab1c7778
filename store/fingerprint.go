package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// NormalizeTitle lowercases a title, strips punctuation and collapses
// whitespace, so that trivially reworded duplicates ("Re: Reply to
// Bob!!") fingerprint identically.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Fingerprint derives the deduplication key for a task: a hash of the
// normalized title, the lowercased sender, and the due date rounded to
// its UTC day. Identity is derived only from these deterministic
// fields; the extraction model never assigns it.
func Fingerprint(title, sender string, dueAt *time.Time) string {
	day := "none"
	if dueAt != nil {
		day = dueAt.UTC().Format("2006-01-02")
	}
	h := sha256.New()
	h.Write([]byte(NormalizeTitle(title)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(sender))))
	h.Write([]byte{0})
	h.Write([]byte(day))
	return hex.EncodeToString(h.Sum(nil))
}
