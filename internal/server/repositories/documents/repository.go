package documents

import (
	"context"
	"time"

	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
)

// Repository stores documents of any kind; collection names the table.
type Repository interface {
	FindByID(ctx context.Context, collection, id string) (*models.Document, error)
	List(ctx context.Context, collection string) ([]*models.Document, error)
	Insert(ctx context.Context, collection string, doc *models.Document) error
	Update(ctx context.Context, collection, id string, change Change) error
	Delete(ctx context.Context, collection, id string) error
	FindReferencing(ctx context.Context, collection, field, id string) ([]*models.Document, error)
}

// Change is a field-level update. Only the keys present in Fields and
// Attachments are written; Segments replaces the stored list when
// SetSegments is true.
type Change struct {
	Fields      map[string]any
	Attachments map[string]string
	Segments    []models.Segment
	SetSegments bool
	UpdatedAt   time.Time
}

// Empty reports whether the change would not modify anything.
func (c Change) Empty() bool {
	return len(c.Fields) == 0 && len(c.Attachments) == 0 && !c.SetSegments
}

// Keys lists the changed keys in a stable order: fields, slots, segments.
func (c Change) Keys() []string {
	keys := make([]string, 0, len(c.Fields)+len(c.Attachments)+1)
	keys = append(keys, sortedKeys(c.Fields)...)
	keys = append(keys, sortedKeys(c.Attachments)...)
	if c.SetSegments {
		keys = append(keys, "segments")
	}
	return keys
}
