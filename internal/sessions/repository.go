package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"heritage-gallery-backend/internal/models"
)

// reserved keys are owned by the store and never written from a document body.
var reserved = map[string]bool{
	"id":        true,
	"userId":    true,
	"createdAt": true,
	"updatedAt": true,
}

// validator is implemented by session types with enumerated fields.
type validator interface {
	Validate() error
}

// Record is the pointer form of a session type.
type Record[T any] interface {
	*T
	Meta() *models.SessionMeta
}

// Repository reads and writes one session collection through a DocumentStore.
type Repository[T any, P Record[T]] struct {
	store DocumentStore
	coll  Collection
	now   func() time.Time
}

type (
	ProcessingRepository = Repository[models.ProcessingSession, *models.ProcessingSession]
	SciFiRepository      = Repository[models.SciFiSession, *models.SciFiSession]
)

func NewRepository[T any, P Record[T]](store DocumentStore, coll Collection) *Repository[T, P] {
	return &Repository[T, P]{
		store: store,
		coll:  coll,
		now:   time.Now,
	}
}

func NewProcessingRepository(store DocumentStore) *ProcessingRepository {
	return NewRepository[models.ProcessingSession](store, ProcessingSessions)
}

func NewSciFiRepository(store DocumentStore) *SciFiRepository {
	return NewRepository[models.SciFiSession](store, SciFiSessions)
}

func (r *Repository[T, P]) Collection() Collection {
	return r.coll
}

// ListByOwner returns the owner's sessions newest first. If the store cannot
// serve the ordered query the unordered query is sorted locally with the
// same key.
func (r *Repository[T, P]) ListByOwner(ctx context.Context, ownerID string) ([]T, error) {
	docs, err := r.store.ListByOwner(ctx, r.coll, ownerID, true)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("list %s: %w", r.coll.Name, err)
		}
		slog.Warn("ordered session query failed, falling back to client-side sort",
			"collection", r.coll.Name,
			"owner_id", ownerID,
			"error", err,
		)
		docs, err = r.store.ListByOwner(ctx, r.coll, ownerID, false)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", r.coll.Name, err)
		}
		SortDocuments(docs)
	}

	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		s, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *Repository[T, P]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := r.store.Get(ctx, r.coll, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", r.coll.Name, id, err)
	}
	return r.decode(doc)
}

func (r *Repository[T, P]) Create(ctx context.Context, ownerID string, session *T) (*T, error) {
	P(session).Meta().IsActive = true
	if v, ok := any(session).(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	body, err := encodeBody(session)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.coll.Name, err)
	}

	doc, err := r.store.Create(ctx, r.coll, ownerID, body)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", r.coll.Name, err)
	}
	return r.decode(doc)
}

// Update merges fields into the stored session and marks it active. Keys
// owned by the store are ignored; unknown keys or values of the wrong shape
// fail with models.ErrInvalidField.
func (r *Repository[T, P]) Update(ctx context.Context, id string, fields Fields) error {
	patch := make(Fields, len(fields)+1)
	for k, v := range fields {
		if reserved[k] {
			continue
		}
		patch[k] = v
	}
	if err := r.validate(patch); err != nil {
		return err
	}
	patch["isActive"] = true

	if err := r.store.Merge(ctx, r.coll, id, patch); err != nil {
		return fmt.Errorf("update %s %s: %w", r.coll.Name, id, err)
	}
	return nil
}

// Remove deletes the session. Deleting a session that no longer exists
// succeeds.
func (r *Repository[T, P]) Remove(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, r.coll, id)
	if err != nil && !errors.Is(err, models.ErrSessionNotFound) {
		return fmt.Errorf("delete %s %s: %w", r.coll.Name, id, err)
	}
	return nil
}

// AppendMessage stamps msg with a fresh id and the current time and appends
// it to the session's message log in one store-side write.
func (r *Repository[T, P]) AppendMessage(ctx context.Context, id string, msg models.Message) error {
	msg.Stamp(ulid.Make().String(), r.now().UTC())

	err := r.store.AppendToArray(ctx, r.coll, id, r.coll.MessagesField, msg, Fields{"isActive": true})
	if err != nil {
		return fmt.Errorf("append message to %s %s: %w", r.coll.Name, id, err)
	}
	return nil
}

func (r *Repository[T, P]) decode(doc Document) (*T, error) {
	var v T
	if len(doc.Data) > 0 {
		if err := json.Unmarshal(doc.Data, &v); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", r.coll.Name, doc.ID, err)
		}
	}

	meta := P(&v).Meta()
	meta.ID = doc.ID
	meta.UserID = doc.OwnerID
	meta.CreatedAt = doc.CreatedAt
	meta.UpdatedAt = doc.UpdatedAt
	return &v, nil
}

func (r *Repository[T, P]) validate(patch Fields) error {
	known := fieldNames[T]()
	for k := range patch {
		if !known[k] {
			return fmt.Errorf("%w: %q", models.ErrInvalidField, k)
		}
	}

	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidField, err)
	}
	var probe T
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidField, err)
	}
	if v, ok := any(&probe).(validator); ok {
		return v.Validate()
	}
	return nil
}

// encodeBody marshals a session without the store-owned keys.
func encodeBody(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	for k := range reserved {
		delete(body, k)
	}
	return json.Marshal(body)
}
