// Package taxonomy manages categories and tags. A term that any article
// still references cannot be deleted.
package taxonomy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/dbx"
	"github.com/dmitrijs2005/contentkeeper/internal/logging"
	"github.com/dmitrijs2005/contentkeeper/internal/server/kinds"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/repomanager"
	taxrepo "github.com/dmitrijs2005/contentkeeper/internal/server/repositories/taxonomy"
)

// MaxNameLength bounds a normalized term name, in runes.
const MaxNameLength = 64

// Taxonomy describes one term collection and how articles point at it.
type Taxonomy struct {
	// Name is the collection name, e.g. "categories".
	Name string
	// Singular is used in messages and as the legacy form key.
	Singular string
	// ArticleField is the article field holding references to terms.
	ArticleField string
}

var (
	Categories = Taxonomy{Name: taxrepo.CategoriesTable, Singular: "category", ArticleField: kinds.CategoryField}
	Tags       = Taxonomy{Name: taxrepo.TagsTable, Singular: "tag", ArticleField: kinds.TagsField}
)

// Service implements create, list and guarded delete for taxonomies.
type Service struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	// articles is the kind whose documents reference terms.
	articles kinds.Kind

	now   func() time.Time
	newID func() string
}

// NewService constructs a Service.
func NewService(db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger) *Service {
	return &Service{
		db:          db,
		repomanager: rm,
		logger:      logger.With("module", "taxonomy"),
		articles:    kinds.Articles(""),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

func (s *Service) terms(t Taxonomy, db dbx.DBTX) taxrepo.Repository {
	if t.Name == taxrepo.TagsTable {
		return s.repomanager.Tags(db)
	}
	return s.repomanager.Categories(db)
}

// NormalizeName trims and lowercases a term name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Create stores a new term. Names are compared after normalization, so
// " Go " and "go" collide.
func (s *Service) Create(ctx context.Context, t Taxonomy, name string) (*models.Term, error) {
	name = NormalizeName(name)
	err := validation.Validate(name,
		validation.Required.Error(fmt.Sprintf("%s name is required", t.Singular)),
		validation.RuneLength(1, MaxNameLength),
	)
	if err != nil {
		return nil, common.NewValidationError("name", err.Error())
	}

	term := &models.Term{ID: s.newID(), Name: name, CreatedAt: s.now()}
	if err := s.terms(t, s.db).Create(ctx, term); err != nil {
		return nil, common.Unavailable("create "+t.Singular, err)
	}

	s.logger.Info(ctx, "term created", "taxonomy", t.Name, "id", term.ID, "name", name)
	return term, nil
}

// List returns all terms of t ordered by name.
func (s *Service) List(ctx context.Context, t Taxonomy) ([]models.Term, error) {
	terms, err := s.terms(t, s.db).List(ctx)
	if err != nil {
		return nil, common.Unavailable("list "+t.Name, err)
	}
	return terms, nil
}

// Delete removes term id unless an article references it. The reference
// check and the delete share one transaction. A refusal is a
// *common.ConflictError listing the referencing article titles.
func (s *Service) Delete(ctx context.Context, t Taxonomy, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.NewValidationError("id", fmt.Sprintf("invalid %s id", t.Singular))
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		refs, err := s.repomanager.Documents(tx).FindReferencing(ctx, s.articles.Name, t.ArticleField, id)
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			titles := make([]string, 0, len(refs))
			for _, d := range refs {
				titles = append(titles, d.String(s.articles.TitleField))
			}
			return &common.ConflictError{
				Message:    fmt.Sprintf("%s cannot be deleted as it is associated with articles", t.Singular),
				References: titles,
			}
		}
		return s.terms(t, tx).Delete(ctx, id)
	})
	if err != nil {
		return common.Unavailable("delete "+t.Singular, err)
	}

	s.logger.Info(ctx, "term deleted", "taxonomy", t.Name, "id", id)
	return nil
}
