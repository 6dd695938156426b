// Package documents provides the PostgreSQL document store: one table per
// collection, each row holding an id, a JSONB body and timestamps.
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/dbx"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func table(collection string) string {
	return pgx.Identifier{collection}.Sanitize()
}

// FindByID returns the document with the given id or common.ErrorNotFound.
func (r *PostgresRepository) FindByID(ctx context.Context, collection, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT id, body, created_at, updated_at FROM %s WHERE id = $1`, table(collection))

	var (
		doc  models.Document
		body []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&doc.ID, &body, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError(err, collection, id)
	}
	if err := decodeBody(body, &doc); err != nil {
		return nil, fmt.Errorf("%s %s: %w", collection, id, err)
	}
	return &doc, nil
}

// List returns every document of the collection, oldest first.
func (r *PostgresRepository) List(ctx context.Context, collection string) ([]*models.Document, error) {
	query := fmt.Sprintf(`SELECT id, body, created_at, updated_at FROM %s ORDER BY created_at, id`, table(collection))
	return r.query(ctx, collection, query)
}

// Insert stores a new document. A duplicate id yields common.ErrAlreadyExists.
func (r *PostgresRepository) Insert(ctx context.Context, collection string, doc *models.Document) error {
	body, err := encodeBody(doc)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, body, created_at, updated_at) VALUES ($1, $2::jsonb, $3, $4)`, table(collection))

	if _, err := r.db.ExecContext(ctx, query, doc.ID, body, doc.CreatedAt, doc.UpdatedAt); err != nil {
		return dbx.MapError(err, collection, doc.ID)
	}
	return nil
}

// Update merges change into the stored body. Fields and slots not named
// in the change keep their stored values.
func (r *PostgresRepository) Update(ctx context.Context, collection, id string, change Change) error {
	fields, err := json.Marshal(nonNil(change.Fields))
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	slots, err := json.Marshal(nonNil(change.Attachments))
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}
	var segments any // NULL leaves the stored list alone
	if change.SetSegments {
		list := change.Segments
		if list == nil {
			list = []models.Segment{}
		}
		b, err := json.Marshal(map[string]any{"segments": list})
		if err != nil {
			return fmt.Errorf("encode segments: %w", err)
		}
		segments = string(b)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			body = jsonb_set(
				jsonb_set(body, '{fields}', COALESCE(body->'fields', '{}'::jsonb) || $2::jsonb),
				'{attachments}', COALESCE(body->'attachments', '{}'::jsonb) || $3::jsonb
			) || COALESCE($4::jsonb, '{}'::jsonb),
			updated_at = $5
		WHERE id = $1`, table(collection))

	res, err := r.db.ExecContext(ctx, query, id, string(fields), string(slots), segments, change.UpdatedAt)
	if err != nil {
		return dbx.MapError(err, collection, id)
	}
	return expectOne(res.RowsAffected, collection, id)
}

// Delete removes the document; a missing row yields common.ErrorNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, collection, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table(collection))
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return dbx.MapError(err, collection, id)
	}
	return expectOne(res.RowsAffected, collection, id)
}

// FindReferencing returns documents whose field equals id or, for list
// fields, contains it.
func (r *PostgresRepository) FindReferencing(ctx context.Context, collection, field, id string) ([]*models.Document, error) {
	query := fmt.Sprintf(`
		SELECT id, body, created_at, updated_at FROM %s
		WHERE body->'fields'->($1::text) = to_jsonb($2::text)
		   OR body->'fields'->($1::text) @> jsonb_build_array($2::text)
		ORDER BY created_at, id`, table(collection))
	return r.query(ctx, collection, query, field, id)
}

func (r *PostgresRepository) query(ctx context.Context, collection, query string, args ...any) ([]*models.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.MapError(err, collection, "list")
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		var (
			doc  models.Document
			body []byte
		)
		if err := rows.Scan(&doc.ID, &body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		if err := decodeBody(body, &doc); err != nil {
			return nil, fmt.Errorf("%s %s: %w", collection, doc.ID, err)
		}
		result = append(result, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError(err, collection, "list")
	}
	return result, nil
}

func expectOne(rowsAffected func() (int64, error), collection, id string) error {
	n, err := rowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%s %s: %w", collection, id, common.ErrorNotFound)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func encodeBody(doc *models.Document) (string, error) {
	b, err := json.Marshal(models.Body{
		Fields:      nonNil(doc.Fields),
		Attachments: nonNil(doc.Attachments),
		Segments:    doc.Segments,
	})
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

func decodeBody(raw []byte, doc *models.Document) error {
	var body models.Body
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	doc.Fields = make(map[string]any, len(body.Fields))
	for k, v := range body.Fields {
		doc.Fields[k] = models.NormalizeValue(v)
	}
	doc.Attachments = nonNil(body.Attachments)
	doc.Segments = body.Segments
	return nil
}

func nonNil[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

var _ Repository = (*PostgresRepository)(nil)
