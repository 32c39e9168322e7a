package sessions

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// Collection names a session collection and the array field that holds its
// message log.
type Collection struct {
	Name          string
	MessagesField string
}

var (
	ProcessingSessions = Collection{Name: "processing_sessions", MessagesField: "chatMessages"}
	SciFiSessions      = Collection{Name: "scifi_sessions", MessagesField: "messages"}
)

// Document is a stored session body together with the columns the store owns.
type Document struct {
	ID        string
	OwnerID   string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fields is a partial document keyed by JSON field name.
type Fields map[string]any

// DocumentStore is the backing store for session documents. Every mutation
// refreshes UpdatedAt. Get, Merge, Delete and AppendToArray return
// models.ErrSessionNotFound for unknown ids.
type DocumentStore interface {
	Create(ctx context.Context, coll Collection, ownerID string, data json.RawMessage) (Document, error)
	Get(ctx context.Context, coll Collection, id string) (Document, error)
	// ListByOwner returns the owner's documents. With ordered set the store
	// sorts server-side by the order of CompareDocuments, which may fail
	// when the store cannot serve that ordering.
	ListByOwner(ctx context.Context, coll Collection, ownerID string, ordered bool) ([]Document, error)
	// Merge sets the given top-level fields and leaves all others untouched.
	Merge(ctx context.Context, coll Collection, id string, fields Fields) error
	Delete(ctx context.Context, coll Collection, id string) error
	// AppendToArray appends elem to the array at field and merges patch in a
	// single atomic write.
	AppendToArray(ctx context.Context, coll Collection, id, field string, elem any, patch Fields) error
}

// CompareDocuments orders documents newest first: updatedAt desc, then
// createdAt desc, then id asc.
func CompareDocuments(a, b Document) int {
	if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func SortDocuments(docs []Document) {
	slices.SortStableFunc(docs, CompareDocuments)
}

// notArray reports whether raw is missing, null or not a JSON array.
func notArray(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return len(s) == 0 || s[0] != '['
}
