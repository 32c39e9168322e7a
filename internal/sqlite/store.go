// Package sqlite is a single-file session document store for local and
// single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/sessions"
)

type Store struct {
	db   *sql.DB
	path string

	mu  sync.Mutex
	now func() time.Time
}

var _ sessions.DocumentStore = (*Store)(nil)

func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	var schema strings.Builder
	for _, coll := range []sessions.Collection{sessions.ProcessingSessions, sessions.SciFiSessions} {
		fmt.Fprintf(&schema, `
	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		data TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_owner_recent
		ON %[1]s(user_id, updated_at DESC, created_at DESC, id);
	`, coll.Name)
	}
	_, err := s.db.Exec(schema.String())
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock replaces the time source used to stamp documents.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().UTC().UnixNano()
}

func tableFor(coll sessions.Collection) (string, error) {
	switch coll.Name {
	case sessions.ProcessingSessions.Name, sessions.SciFiSessions.Name:
		return coll.Name, nil
	}
	return "", fmt.Errorf("unknown collection %q", coll.Name)
}

const documentColumns = "id, user_id, data, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (sessions.Document, error) {
	var (
		doc                  sessions.Document
		data                 string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&doc.ID, &doc.OwnerID, &data, &createdAt, &updatedAt); err != nil {
		return sessions.Document{}, err
	}
	doc.Data = json.RawMessage(data)
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	doc.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return doc, nil
}

func (s *Store) Create(ctx context.Context, coll sessions.Collection, ownerID string, data json.RawMessage) (sessions.Document, error) {
	table, err := tableFor(coll)
	if err != nil {
		return sessions.Document{}, err
	}
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	id := uuid.NewString()
	now := s.stamp()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, user_id, data, created_at, updated_at)
		VALUES (?, ?, json(?), ?, ?)
	`, id, ownerID, string(data), now, now)
	if err != nil {
		return sessions.Document{}, fmt.Errorf("insert session: %w", err)
	}
	return s.Get(ctx, coll, id)
}

func (s *Store) Get(ctx context.Context, coll sessions.Collection, id string) (sessions.Document, error) {
	table, err := tableFor(coll)
	if err != nil {
		return sessions.Document{}, err
	}

	doc, err := scanDocument(s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM `+table+` WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return sessions.Document{}, models.ErrSessionNotFound
	}
	if err != nil {
		return sessions.Document{}, fmt.Errorf("get session: %w", err)
	}
	return doc, nil
}

func (s *Store) ListByOwner(ctx context.Context, coll sessions.Collection, ownerID string, ordered bool) ([]sessions.Document, error) {
	table, err := tableFor(coll)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + documentColumns + ` FROM ` + table + ` WHERE user_id = ?`
	if ordered {
		query += ` ORDER BY updated_at DESC, created_at DESC, id ASC`
	}

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var docs []sessions.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) Merge(ctx context.Context, coll sessions.Collection, id string, fields sessions.Fields) error {
	table, err := tableFor(coll)
	if err != nil {
		return err
	}
	pairs, args, err := setPairs(fields)
	if err != nil {
		return err
	}
	if pairs == "" {
		_, err := s.Get(ctx, coll, id)
		return err
	}

	args = append(args, s.stamp(), id)
	res, err := s.db.ExecContext(ctx, `
		UPDATE `+table+`
		SET data = json_set(data`+pairs+`), updated_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(res)
}

func (s *Store) Delete(ctx context.Context, coll sessions.Collection, id string) error {
	table, err := tableFor(coll)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRow(res)
}

// AppendToArray rewrites the array and the patched fields in one UPDATE.
func (s *Store) AppendToArray(ctx context.Context, coll sessions.Collection, id, field string, elem any, patch sessions.Fields) error {
	table, err := tableFor(coll)
	if err != nil {
		return err
	}
	elemJSON, err := json.Marshal(elem)
	if err != nil {
		return fmt.Errorf("encode element: %w", err)
	}
	pairs, patchArgs, err := setPairs(patch)
	if err != nil {
		return err
	}

	path := jsonPath(field)
	args := []any{path, path, path, string(elemJSON)}
	args = append(args, patchArgs...)
	args = append(args, s.stamp(), id)

	res, err := s.db.ExecContext(ctx, `
		UPDATE `+table+`
		SET data = json_set(data, ?,
				json_insert(
					CASE WHEN json_type(data, ?) = 'array' THEN json_extract(data, ?) ELSE '[]' END,
					'$[#]', json(?)
				)`+pairs+`),
			updated_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("append to session: %w", err)
	}
	return requireRow(res)
}

// setPairs renders fields as json_set path/value arguments in key order.
func setPairs(fields sessions.Fields) (string, []any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		raw, err := json.Marshal(fields[k])
		if err != nil {
			return "", nil, fmt.Errorf("encode field %s: %w", k, err)
		}
		b.WriteString(", ?, json(?)")
		args = append(args, jsonPath(k), string(raw))
	}
	return b.String(), args, nil
}

func jsonPath(field string) string {
	return `$."` + field + `"`
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}
