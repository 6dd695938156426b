// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/contentkeeper/internal/dbx"
	"github.com/dmitrijs2005/contentkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/taxonomy"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories bound to
// either the pool or a transaction.
type PostgresRepositoryManager struct{}

// Documents returns the document store bound to db.
func (m *PostgresRepositoryManager) Documents(db dbx.DBTX) documents.Repository {
	return documents.NewPostgresRepository(db)
}

// Categories returns the category repository bound to db.
func (m *PostgresRepositoryManager) Categories(db dbx.DBTX) taxonomy.Repository {
	return taxonomy.NewPostgresRepository(db, taxonomy.CategoriesTable)
}

// Tags returns the tag repository bound to db.
func (m *PostgresRepositoryManager) Tags(db dbx.DBTX) taxonomy.Repository {
	return taxonomy.NewPostgresRepository(db, taxonomy.TagsTable)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
