package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"heritage-gallery-backend/internal/models"
)

// MemoryStore is an in-process DocumentStore. It backs tests and the
// "memory" store driver.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]*Document
	now         func() time.Time

	failOrdered bool
	failures    map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*Document),
		now:         func() time.Time { return time.Now().UTC() },
		failures:    make(map[string]error),
	}
}

// SetClock replaces the time source used to stamp documents.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailOrderedQueries makes ordered listings fail the way a store without the
// required index does.
func (s *MemoryStore) FailOrderedQueries(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOrdered = fail
}

// FailCollection makes every listing of coll fail with err. A nil err clears it.
func (s *MemoryStore) FailCollection(coll Collection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, coll.Name)
		return
	}
	s.failures[coll.Name] = err
}

func (s *MemoryStore) Create(ctx context.Context, coll Collection, ownerID string, data json.RawMessage) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	doc := &Document{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Data:      append(json.RawMessage(nil), data...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.collection(coll)[doc.ID] = doc
	return clone(doc), nil
}

func (s *MemoryStore) Get(ctx context.Context, coll Collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collection(coll)[id]
	if !ok {
		return Document{}, models.ErrSessionNotFound
	}
	return clone(doc), nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, coll Collection, ownerID string, ordered bool) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures[coll.Name]; err != nil {
		return nil, err
	}
	if ordered && s.failOrdered {
		return nil, fmt.Errorf("query on %s requires an index on (user_id, updated_at)", coll.Name)
	}

	var docs []Document
	for _, doc := range s.collection(coll) {
		if doc.OwnerID == ownerID {
			docs = append(docs, clone(doc))
		}
	}
	if ordered {
		SortDocuments(docs)
	}
	return docs, nil
}

func (s *MemoryStore) Merge(ctx context.Context, coll Collection, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collection(coll)[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	body, err := decodeObject(doc.Data)
	if err != nil {
		return err
	}
	if err := setFields(body, fields); err != nil {
		return err
	}
	return s.write(doc, body)
}

func (s *MemoryStore) Delete(ctx context.Context, coll Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(coll)
	if _, ok := c[id]; !ok {
		return models.ErrSessionNotFound
	}
	delete(c, id)
	return nil
}

func (s *MemoryStore) AppendToArray(ctx context.Context, coll Collection, id, field string, elem any, patch Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collection(coll)[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	body, err := decodeObject(doc.Data)
	if err != nil {
		return err
	}

	var items []json.RawMessage
	if !notArray(body[field]) {
		if err := json.Unmarshal(body[field], &items); err != nil {
			return fmt.Errorf("decode %s: %w", field, err)
		}
	}
	raw, err := json.Marshal(elem)
	if err != nil {
		return fmt.Errorf("encode element: %w", err)
	}
	items = append(items, raw)
	if body[field], err = json.Marshal(items); err != nil {
		return err
	}

	if err := setFields(body, patch); err != nil {
		return err
	}
	return s.write(doc, body)
}

func (s *MemoryStore) collection(coll Collection) map[string]*Document {
	c, ok := s.collections[coll.Name]
	if !ok {
		c = make(map[string]*Document)
		s.collections[coll.Name] = c
	}
	return c
}

func (s *MemoryStore) write(doc *Document, body map[string]json.RawMessage) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	doc.Data = data
	doc.UpdatedAt = s.now()
	return nil
}

func decodeObject(data json.RawMessage) (map[string]json.RawMessage, error) {
	body := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return body, nil
}

func setFields(body map[string]json.RawMessage, fields Fields) error {
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", k, err)
		}
		body[k] = raw
	}
	return nil
}

func clone(doc *Document) Document {
	c := *doc
	c.Data = append(json.RawMessage(nil), doc.Data...)
	return c
}

var _ DocumentStore = (*MemoryStore)(nil)
