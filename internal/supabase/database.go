package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/sessions"
)

// DatabaseClient stores session documents as jsonb rows in Postgres.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) DB() *sql.DB {
	return d.db
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

// tableFor returns the quoted table of a known session collection.
func tableFor(coll sessions.Collection) (string, error) {
	switch coll.Name {
	case sessions.ProcessingSessions.Name, sessions.SciFiSessions.Name:
		return pq.QuoteIdentifier(coll.Name), nil
	}
	return "", fmt.Errorf("unknown collection %q", coll.Name)
}

// validID reports whether id can name a row; other ids cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

const documentColumns = "id, user_id, data, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (sessions.Document, error) {
	var (
		doc  sessions.Document
		data []byte
	)
	if err := row.Scan(&doc.ID, &doc.OwnerID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return sessions.Document{}, err
	}
	doc.Data = json.RawMessage(data)
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}

func (d *DatabaseClient) Create(ctx context.Context, coll sessions.Collection, ownerID string, data json.RawMessage) (sessions.Document, error) {
	table, err := tableFor(coll)
	if err != nil {
		return sessions.Document{}, err
	}

	doc, err := scanDocument(d.db.QueryRowContext(ctx, `
		INSERT INTO `+table+` (user_id, data)
		VALUES ($1, $2::jsonb)
		RETURNING `+documentColumns,
		ownerID, string(data)))
	if err != nil {
		return sessions.Document{}, fmt.Errorf("failed to create session: %w", err)
	}
	return doc, nil
}

func (d *DatabaseClient) Get(ctx context.Context, coll sessions.Collection, id string) (sessions.Document, error) {
	table, err := tableFor(coll)
	if err != nil {
		return sessions.Document{}, err
	}
	if !validID(id) {
		return sessions.Document{}, models.ErrSessionNotFound
	}

	doc, err := scanDocument(d.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM `+table+`
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.Document{}, models.ErrSessionNotFound
	}
	if err != nil {
		return sessions.Document{}, fmt.Errorf("failed to get session: %w", err)
	}
	return doc, nil
}

func (d *DatabaseClient) ListByOwner(ctx context.Context, coll sessions.Collection, ownerID string, ordered bool) ([]sessions.Document, error) {
	table, err := tableFor(coll)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + documentColumns + `
		FROM ` + table + `
		WHERE user_id = $1`
	if ordered {
		query += `
		ORDER BY updated_at DESC, created_at DESC, id ASC`
	}

	rows, err := d.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var docs []sessions.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return docs, nil
}

func (d *DatabaseClient) Merge(ctx context.Context, coll sessions.Collection, id string, fields sessions.Fields) error {
	table, err := tableFor(coll)
	if err != nil {
		return err
	}
	if !validID(id) {
		return models.ErrSessionNotFound
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE `+table+`
		SET data = data || $2::jsonb, updated_at = now()
		WHERE id = $1
	`, id, string(patch))
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return requireRow(res)
}

func (d *DatabaseClient) Delete(ctx context.Context, coll sessions.Collection, id string) error {
	table, err := tableFor(coll)
	if err != nil {
		return err
	}
	if !validID(id) {
		return models.ErrSessionNotFound
	}

	res, err := d.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return requireRow(res)
}

// AppendToArray appends in one UPDATE; the row lock serializes concurrent
// appends to the same session.
func (d *DatabaseClient) AppendToArray(ctx context.Context, coll sessions.Collection, id, field string, elem any, patch sessions.Fields) error {
	table, err := tableFor(coll)
	if err != nil {
		return err
	}
	if !validID(id) {
		return models.ErrSessionNotFound
	}
	elemJSON, err := json.Marshal(elem)
	if err != nil {
		return fmt.Errorf("failed to encode element: %w", err)
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE `+table+`
		SET data = jsonb_set(
				data,
				ARRAY[$2::text],
				(CASE WHEN jsonb_typeof(data->($2::text)) = 'array' THEN data->($2::text) ELSE '[]'::jsonb END)
					|| jsonb_build_array($3::jsonb)
			) || $4::jsonb,
			updated_at = now()
		WHERE id = $1
	`, id, field, string(elemJSON), string(patchJSON))
	if err != nil {
		return fmt.Errorf("failed to append to session: %w", err)
	}
	return requireRow(res)
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

var _ sessions.DocumentStore = (*DatabaseClient)(nil)
