package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/sessions"
)

// RPC functions installed by the session_functions migration.
const (
	mergeFunction  = "gallery_merge_session"
	appendFunction = "gallery_append_session_message"
)

// RestStore stores session documents through the Supabase REST API. Merge
// and append run as SQL functions so each is one atomic write. The
// underlying client takes no context; calls are not cancellable.
type RestStore struct {
	client *supabase.Client
}

func NewRestStore(url, key string) (*RestStore, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, err
	}
	return &RestStore{client: client}, nil
}

type documentRow struct {
	ID        string          `json:"id,omitempty"`
	UserID    string          `json:"user_id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

func (r documentRow) document() sessions.Document {
	return sessions.Document{
		ID:        r.ID,
		OwnerID:   r.UserID,
		Data:      r.Data,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func decodeRows(body []byte) ([]sessions.Document, error) {
	var rows []documentRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	docs := make([]sessions.Document, len(rows))
	for i, r := range rows {
		docs[i] = r.document()
	}
	return docs, nil
}

func (s *RestStore) Create(ctx context.Context, coll sessions.Collection, ownerID string, data json.RawMessage) (sessions.Document, error) {
	if _, err := tableFor(coll); err != nil {
		return sessions.Document{}, err
	}

	body, _, err := s.client.From(coll.Name).
		Insert(map[string]any{"user_id": ownerID, "data": data}, false, "", "representation", "").
		Execute()
	if err != nil {
		return sessions.Document{}, fmt.Errorf("failed to create session: %w", err)
	}
	docs, err := decodeRows(body)
	if err != nil {
		return sessions.Document{}, err
	}
	if len(docs) != 1 {
		return sessions.Document{}, fmt.Errorf("failed to create session: %d rows returned", len(docs))
	}
	return docs[0], nil
}

func (s *RestStore) Get(ctx context.Context, coll sessions.Collection, id string) (sessions.Document, error) {
	if _, err := tableFor(coll); err != nil {
		return sessions.Document{}, err
	}
	if !validID(id) {
		return sessions.Document{}, models.ErrSessionNotFound
	}

	body, _, err := s.client.From(coll.Name).
		Select(documentColumns, "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return sessions.Document{}, fmt.Errorf("failed to get session: %w", err)
	}
	docs, err := decodeRows(body)
	if err != nil {
		return sessions.Document{}, err
	}
	if len(docs) == 0 {
		return sessions.Document{}, models.ErrSessionNotFound
	}
	return docs[0], nil
}

func (s *RestStore) ListByOwner(ctx context.Context, coll sessions.Collection, ownerID string, ordered bool) ([]sessions.Document, error) {
	if _, err := tableFor(coll); err != nil {
		return nil, err
	}

	q := s.client.From(coll.Name).
		Select(documentColumns, "", false).
		Eq("user_id", ownerID)
	if ordered {
		q = q.Order("updated_at", &postgrest.OrderOpts{Ascending: false}).
			Order("created_at", &postgrest.OrderOpts{Ascending: false}).
			Order("id", &postgrest.OrderOpts{Ascending: true})
	}

	body, _, err := q.Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return decodeRows(body)
}

func (s *RestStore) Merge(ctx context.Context, coll sessions.Collection, id string, fields sessions.Fields) error {
	if _, err := tableFor(coll); err != nil {
		return err
	}
	if !validID(id) {
		return models.ErrSessionNotFound
	}
	return s.call(mergeFunction, map[string]any{
		"p_table": coll.Name,
		"p_id":    id,
		"p_patch": fields,
	})
}

func (s *RestStore) Delete(ctx context.Context, coll sessions.Collection, id string) error {
	if _, err := tableFor(coll); err != nil {
		return err
	}
	if !validID(id) {
		return models.ErrSessionNotFound
	}

	body, _, err := s.client.From(coll.Name).
		Delete("representation", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	docs, err := decodeRows(body)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

func (s *RestStore) AppendToArray(ctx context.Context, coll sessions.Collection, id, field string, elem any, patch sessions.Fields) error {
	if _, err := tableFor(coll); err != nil {
		return err
	}
	if !validID(id) {
		return models.ErrSessionNotFound
	}
	return s.call(appendFunction, map[string]any{
		"p_table": coll.Name,
		"p_id":    id,
		"p_field": field,
		"p_elem":  elem,
		"p_patch": patch,
	})
}

// call runs a session function that answers whether it found the row.
func (s *RestStore) call(fn string, args map[string]any) error {
	res := strings.TrimSpace(s.client.Rpc(fn, "", args))
	switch res {
	case "true":
		return nil
	case "false":
		return models.ErrSessionNotFound
	}
	return fmt.Errorf("%s failed: %s", fn, res)
}

var _ sessions.DocumentStore = (*RestStore)(nil)
