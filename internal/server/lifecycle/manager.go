// Package lifecycle creates, reads, updates and deletes documents of one
// kind while keeping their blob references consistent: uploads happen
// before the document write, deletions of superseded blobs after it.
package lifecycle

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/logging"
	"github.com/dmitrijs2005/contentkeeper/internal/server/attachments"
	"github.com/dmitrijs2005/contentkeeper/internal/server/kinds"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/contentkeeper/internal/server/segments"
)

// BlobStore is the object store as seen by the manager.
type BlobStore interface {
	Put(ctx context.Context, prefix string, u *models.Upload) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Options tune a Manager.
type Options struct {
	// CleanupTimeout bounds post-write blob deletions.
	CleanupTimeout time.Duration
	// UploadConcurrency limits parallel uploads within one request.
	UploadConcurrency int
}

// Manager runs the document lifecycle for a single kind.
type Manager struct {
	kind        kinds.Kind
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       BlobStore
	resolver    *attachments.Resolver
	reconciler  *segments.Reconciler
	logger      logging.Logger
	opts        Options

	now   func() time.Time
	newID func() string
}

// NewManager wires a Manager for kind.
func NewManager(kind kinds.Kind, db *sql.DB, rm repomanager.RepositoryManager, blobs BlobStore, logger logging.Logger, opts Options) *Manager {
	resolver := attachments.New(blobs, kind.Sentinels()...)

	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = 30 * time.Second
	}

	return &Manager{
		kind:        kind,
		db:          db,
		repomanager: rm,
		blobs:       blobs,
		resolver:    resolver,
		reconciler:  segments.New(resolver, kind.SegmentPrefix, opts.UploadConcurrency),
		logger:      logger.With("module", "lifecycle", "kind", kind.Name),
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// Kind returns the descriptor the manager was built for.
func (m *Manager) Kind() kinds.Kind { return m.kind }

func (m *Manager) repo() documents.Repository {
	return m.repomanager.Documents(m.db)
}

// Create validates sub, uploads its files and stores a new document.
// Nothing is uploaded when validation fails.
func (m *Manager) Create(ctx context.Context, sub Submission) (*models.Document, error) {
	errs := validateFields(m.kind, sub.Fields, true)
	if err := validateSegments(m.kind, sub, true); err != nil {
		errs["segments"] = err
	}
	if err := toValidationError(errs); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          m.newID(),
		Fields:      make(map[string]any, len(m.kind.Fields)),
		Attachments: make(map[string]string, len(m.kind.Slots)),
	}
	for _, f := range m.kind.Fields {
		doc.Fields[f.Name] = normalize(f.IsList(), sub.Fields[f.Name])
	}

	for _, slot := range m.kind.Slots {
		res, err := m.resolver.Resolve(ctx, "", sub.Uploads[slot.Name], slot.Default, slot.Prefix)
		if err != nil {
			return nil, err
		}
		doc.Attachments[slot.Name] = res.Ref
	}

	if m.kind.Segments {
		res, err := m.reconciler.Reconcile(ctx, nil, sub.Segments)
		if err != nil {
			return nil, err
		}
		doc.Segments = res.Segments
	}

	doc.CreatedAt = m.now()
	doc.UpdatedAt = doc.CreatedAt

	if err := m.repo().Insert(ctx, m.kind.Name, doc); err != nil {
		return nil, common.Unavailable("insert document", err)
	}

	m.logger.Info(ctx, "document created", "id", doc.ID, "title", doc.String(m.kind.TitleField))
	return doc, nil
}

// Get returns one document.
func (m *Manager) Get(ctx context.Context, id string) (*models.Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	doc, err := m.repo().FindByID(ctx, m.kind.Name, id)
	if err != nil {
		return nil, common.Unavailable("find document", err)
	}
	m.fill(doc)
	return doc, nil
}

// List returns every document of the kind.
func (m *Manager) List(ctx context.Context) ([]*models.Document, error) {
	docs, err := m.repo().List(ctx, m.kind.Name)
	if err != nil {
		return nil, common.Unavailable("list documents", err)
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	for _, d := range docs {
		m.fill(d)
	}
	return docs, nil
}

// Update applies the submitted changes to document id. Only values that
// differ from the stored ones are written; when nothing differs no write
// and no blob operation happens. Superseded blobs are deleted after the
// write succeeds.
func (m *Manager) Update(ctx context.Context, id string, sub Submission) (*UpdateResult, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := toValidationError(validateFields(m.kind, sub.Fields, false)); err != nil {
		return nil, err
	}

	repo := m.repo()
	existing, err := repo.FindByID(ctx, m.kind.Name, id)
	if err != nil {
		return nil, common.Unavailable("find document", err)
	}
	m.fill(existing)

	change := documents.Change{
		Fields:      map[string]any{},
		Attachments: map[string]string{},
	}
	for _, f := range m.kind.Fields {
		v, ok := sub.Fields[f.Name]
		if !ok {
			continue
		}
		v = normalize(f.IsList(), v)
		if !sameValue(existing.Fields[f.Name], v) {
			change.Fields[f.Name] = v
		}
	}

	var stale []string
	for _, slot := range m.kind.Slots {
		upload := sub.Uploads[slot.Name]
		if upload == nil {
			continue
		}
		res, err := m.resolver.Resolve(ctx, existing.Attachments[slot.Name], upload, slot.Default, slot.Prefix)
		if err != nil {
			return nil, err
		}
		change.Attachments[slot.Name] = res.Ref
		if res.Replaced != "" {
			stale = append(stale, res.Replaced)
		}
	}

	if m.kind.Segments && sub.SegmentsPresent {
		res, err := m.reconciler.Reconcile(ctx, existing.Segments, sub.Segments)
		if err != nil {
			return nil, err
		}
		if !slices.Equal(res.Segments, existing.Segments) {
			change.Segments = res.Segments
			change.SetSegments = true
		}
		stale = append(stale, res.Orphans...)
	}

	if change.Empty() {
		return &UpdateResult{Document: existing, Changed: []string{}}, nil
	}

	change.UpdatedAt = m.now()
	if err := repo.Update(ctx, m.kind.Name, id, change); err != nil {
		return nil, common.Unavailable("update document", err)
	}

	updated := apply(existing, change)
	m.fill(updated)
	m.logger.Info(ctx, "document updated", "id", id, "changed", change.Keys())

	m.cleanup(ctx, id, stale)
	return &UpdateResult{Document: updated, Changed: change.Keys()}, nil
}

// Delete removes document id and then every blob it referenced.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	repo := m.repo()
	existing, err := repo.FindByID(ctx, m.kind.Name, id)
	if err != nil {
		return common.Unavailable("find document", err)
	}

	refs := make([]string, 0, len(existing.Attachments)+len(existing.Segments))
	for _, slot := range m.kind.Slots {
		refs = append(refs, existing.Attachments[slot.Name])
	}
	for _, s := range existing.Segments {
		refs = append(refs, s.Image)
	}

	if err := repo.Delete(ctx, m.kind.Name, id); err != nil {
		return common.Unavailable("delete document", err)
	}
	m.logger.Info(ctx, "document deleted", "id", id, "title", existing.String(m.kind.TitleField))

	m.cleanup(ctx, id, refs)
	return nil
}

// cleanup deletes refs in parallel. It outlives request cancellation but
// not CleanupTimeout. Failures are logged only.
func (m *Manager) cleanup(ctx context.Context, id string, refs []string) {
	targets := make([]string, 0, len(refs))
	for _, ref := range refs {
		if m.resolver.IsReal(ref) && !slices.Contains(targets, ref) {
			targets = append(targets, ref)
		}
	}
	if len(targets) == 0 {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.CleanupTimeout)
	defer cancel()

	var g errgroup.Group
	for _, ref := range targets {
		g.Go(func() error {
			if err := m.blobs.Delete(cctx, ref); err != nil {
				m.logger.Warn(cctx, "blob cleanup failed", "id", id, "ref", ref, "error", err)
				return nil
			}
			m.logger.Debug(cctx, "blob deleted", "id", id, "ref", ref)
			return nil
		})
	}
	_ = g.Wait()
}

// fill gives documents read from the store the shape of freshly created
// ones: every slot present, segment kinds with a non-nil list.
func (m *Manager) fill(doc *models.Document) {
	if doc.Attachments == nil {
		doc.Attachments = map[string]string{}
	}
	for _, slot := range m.kind.Slots {
		if doc.Attachments[slot.Name] == "" {
			doc.Attachments[slot.Name] = slot.Default
		}
	}
	if m.kind.Segments && doc.Segments == nil {
		doc.Segments = []models.Segment{}
	}
}

func apply(doc *models.Document, change documents.Change) *models.Document {
	out := doc.Clone()
	for k, v := range change.Fields {
		out.Fields[k] = v
	}
	for k, v := range change.Attachments {
		out.Attachments[k] = v
	}
	if change.SetSegments {
		out.Segments = change.Segments
	}
	out.UpdatedAt = change.UpdatedAt
	return out
}

func normalize(list bool, v any) any {
	if list {
		items := asList(v)
		out := make([]string, 0, len(items))
		for _, s := range items {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return trimmed(v)
}

func sameValue(a, b any) bool {
	switch bv := b.(type) {
	case []string:
		return slices.Equal(asList(a), bv)
	case string:
		as, _ := a.(string)
		return as == bv
	}
	return false
}
