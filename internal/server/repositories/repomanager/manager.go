package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/contentkeeper/internal/dbx"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/taxonomy"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Documents(db dbx.DBTX) documents.Repository
	Categories(db dbx.DBTX) taxonomy.Repository
	Tags(db dbx.DBTX) taxonomy.Repository
}
