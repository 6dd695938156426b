package httpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/dbx"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/contentkeeper/internal/server/taxonomy"
)

// -------- test fakes --------

type memDocs struct {
	documents.Repository
	mu   sync.Mutex
	docs map[string]*models.Document
}

func (m *memDocs) FindByID(ctx context.Context, collection, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[collection+"/"+id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, common.ErrorNotFound)
	}
	return d.Clone(), nil
}

func (m *memDocs) List(ctx context.Context, collection string) ([]*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Document
	for _, d := range m.docs {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (m *memDocs) Insert(ctx context.Context, collection string, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[collection+"/"+doc.ID] = doc.Clone()
	return nil
}

func (m *memDocs) Update(ctx context.Context, collection, id string, change documents.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[collection+"/"+id]
	for k, v := range change.Fields {
		d.Fields[k] = v
	}
	for k, v := range change.Attachments {
		d.Attachments[k] = v
	}
	if change.SetSegments {
		d.Segments = change.Segments
	}
	return nil
}

func (m *memDocs) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, collection+"/"+id)
	return nil
}

type memRM struct {
	repomanager.RepositoryManager
	docs *memDocs
}

func (m *memRM) Documents(dbx.DBTX) documents.Repository { return m.docs }

type memBlobs struct {
	mu      sync.Mutex
	n       int
	puts    int
	deletes []string
}

func (b *memBlobs) Put(ctx context.Context, prefix string, u *models.Upload) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	b.puts++
	return fmt.Sprintf("https://blobs.test/%s/%d-%s", prefix, b.n, u.Filename), nil
}

func (b *memBlobs) Delete(ctx context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, ref)
	return nil
}

func (b *memBlobs) ops() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts + len(b.deletes)
}

type fakeTaxonomy struct {
	terms     map[string][]models.Term
	createErr error
	deleteErr error
	gotName   string
	gotID     string
}

func (f *fakeTaxonomy) Create(ctx context.Context, t taxonomy.Taxonomy, name string) (*models.Term, error) {
	f.gotName = name
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Term{ID: "t-1", Name: taxonomy.NormalizeName(name)}, nil
}

func (f *fakeTaxonomy) List(ctx context.Context, t taxonomy.Taxonomy) ([]models.Term, error) {
	return f.terms[t.Name], nil
}

func (f *fakeTaxonomy) Delete(ctx context.Context, t taxonomy.Taxonomy, id string) error {
	f.gotID = id
	return f.deleteErr
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

var errDown = errors.New("connection refused")
