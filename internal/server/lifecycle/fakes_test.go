package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/dbx"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/repomanager"
)

// -------- test fakes --------

type fakeDocs struct {
	documents.Repository
	docs map[string]*models.Document

	inserts, updates, deletes int
	lastChange                documents.Change

	insertErr, updateErr, deleteErr error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[string]*models.Document{}}
}

func (f *fakeDocs) FindByID(ctx context.Context, collection, id string) (*models.Document, error) {
	d, ok := f.docs[collection+"/"+id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, common.ErrorNotFound)
	}
	return d.Clone(), nil
}

func (f *fakeDocs) List(ctx context.Context, collection string) ([]*models.Document, error) {
	var out []*models.Document
	for k, d := range f.docs {
		if strings.HasPrefix(k, collection+"/") {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func (f *fakeDocs) Insert(ctx context.Context, collection string, doc *models.Document) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts++
	f.docs[collection+"/"+doc.ID] = doc.Clone()
	return nil
}

func (f *fakeDocs) Update(ctx context.Context, collection, id string, change documents.Change) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	f.lastChange = change
	d, ok := f.docs[collection+"/"+id]
	if !ok {
		return common.ErrorNotFound
	}
	for k, v := range change.Fields {
		d.Fields[k] = v
	}
	for k, v := range change.Attachments {
		d.Attachments[k] = v
	}
	if change.SetSegments {
		d.Segments = change.Segments
	}
	d.UpdatedAt = change.UpdatedAt
	return nil
}

func (f *fakeDocs) Delete(ctx context.Context, collection, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes++
	delete(f.docs, collection+"/"+id)
	return nil
}

type fakeRM struct {
	repomanager.RepositoryManager
	docs *fakeDocs
}

func (f *fakeRM) Documents(db dbx.DBTX) documents.Repository { return f.docs }

type fakeBlobs struct {
	mu      sync.Mutex
	puts    []string
	deletes []string
	ctxErrs []error
	n       int

	putErr    error
	deleteErr error
}

func (f *fakeBlobs) Put(ctx context.Context, prefix string, u *models.Upload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	f.n++
	url := fmt.Sprintf("https://blobs.test/%s/%d-%s", prefix, f.n, u.Filename)
	f.puts = append(f.puts, url)
	return url, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, ref)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.deleteErr
}

func (f *fakeBlobs) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.deletes)
	slices.Sort(out)
	return out
}

func (f *fakeBlobs) ops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts) + len(f.deletes)
}

func file(name string) *models.Upload {
	return &models.Upload{Filename: name, ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
}
