// Package record defines the timestamp-keyed document that received
// submissions are persisted into.
package record

import (
	"context"
	"slices"
	"time"

	"github.com/hay-kot/formrelay/internal/core/submission"
)

// KeyLayout is the time layout used for document keys. Keys have second
// precision, so two receipts within the same second share a key and the
// later one replaces the earlier.
const KeyLayout = "2006-01-02 15:04:05"

// Key returns the document key for a receipt at t, in t's location.
func Key(t time.Time) string {
	return t.Format(KeyLayout)
}

// ParseKey parses a document key as local time.
func ParseKey(key string) (time.Time, error) {
	return time.ParseInLocation(KeyLayout, key, time.Local)
}

// Document maps receipt timestamps to the submission received at that time.
type Document map[string]submission.Submission

// Entry is a single keyed record of a Document.
type Entry struct {
	Key        string                `json:"key"`
	Submission submission.Submission `json:"submission"`
}

// Entries returns the document's records sorted by key. Keys sort
// chronologically because of the fixed-width layout.
func (d Document) Entries() []Entry {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k, Submission: d[k]})
	}
	return entries
}

// Store persists the Document.
type Store interface {
	// Append inserts or overwrites the record at key.
	Append(ctx context.Context, key string, sub submission.Submission) error
	// Document returns the full persisted document. A missing backing file
	// is an empty document.
	Document(ctx context.Context) (Document, error)
}
