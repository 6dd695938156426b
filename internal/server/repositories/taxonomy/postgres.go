// Package taxonomy provides PostgreSQL-backed repositories for categories
// and tags. Both share one table layout with a unique name column.
package taxonomy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/dbx"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
)

const (
	CategoriesTable = "categories"
	TagsTable       = "tags"
)

// PostgresRepository implements Repository for a single term table.
type PostgresRepository struct {
	db    dbx.DBTX
	table string
	ident string
}

// NewPostgresRepository binds a repository to db and the given table.
func NewPostgresRepository(db dbx.DBTX, table string) *PostgresRepository {
	return &PostgresRepository{db: db, table: table, ident: pgx.Identifier{table}.Sanitize()}
}

// Create inserts the term; a name already taken yields common.ErrAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, term *models.Term) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, name, created_at) VALUES ($1, $2, $3)`, r.ident)
	if _, err := r.db.ExecContext(ctx, query, term.ID, term.Name, term.CreatedAt); err != nil {
		return dbx.MapError(err, r.table, term.Name)
	}
	return nil
}

// List returns all terms ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]models.Term, error) {
	query := fmt.Sprintf(`SELECT id, name, created_at FROM %s ORDER BY name`, r.ident)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dbx.MapError(err, r.table, "list")
	}
	defer rows.Close()

	result := []models.Term{}
	for rows.Next() {
		var t models.Term
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError(err, r.table, "list")
	}
	return result, nil
}

// Delete removes the term; a missing row yields common.ErrorNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.ident)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return dbx.MapError(err, r.table, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", r.table, id, common.ErrorNotFound)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
