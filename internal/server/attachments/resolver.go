// Package attachments decides, per attachment slot, whether a stored
// reference is kept, replaced by a fresh upload, or set to a default.
package attachments

import (
	"context"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
)

// Uploader stores a file under a key prefix and returns its URL.
type Uploader interface {
	Put(ctx context.Context, prefix string, u *models.Upload) (string, error)
}

// Resolution is the outcome for one slot.
type Resolution struct {
	// Ref is the reference to store. Never empty.
	Ref string
	// Replaced is the previous real reference superseded by an upload.
	// The caller deletes it once the owning document has been written.
	Replaced string
}

// Resolver resolves attachment slots against a blob store.
type Resolver struct {
	store     Uploader
	sentinels map[string]struct{}
}

// New returns a Resolver. sentinels lists values that are never blob URLs
// in addition to "" and models.NoImage (e.g. the placeholder image URL).
func New(store Uploader, sentinels ...string) *Resolver {
	set := map[string]struct{}{"": {}, models.NoImage: {}}
	for _, s := range sentinels {
		set[s] = struct{}{}
	}
	return &Resolver{store: store, sentinels: set}
}

// IsReal reports whether ref points at a blob this service owns.
func (r *Resolver) IsReal(ref string) bool {
	_, ok := r.sentinels[ref]
	return !ok
}

// Resolve picks the reference for a slot:
//   - upload present: store it under prefix, supersede a real existingRef;
//   - upload absent, existingRef set: keep existingRef;
//   - both absent: use defaultRef.
//
// Exactly one Put happens when upload is non-nil. A failed Put is reported
// as common.ErrStorageUnavailable.
func (r *Resolver) Resolve(ctx context.Context, existingRef string, upload *models.Upload, defaultRef, prefix string) (Resolution, error) {
	if upload != nil {
		url, err := r.store.Put(ctx, prefix, upload)
		if err != nil {
			return Resolution{}, common.Unavailable("upload attachment", err)
		}
		res := Resolution{Ref: url}
		if r.IsReal(existingRef) && existingRef != defaultRef {
			res.Replaced = existingRef
		}
		return res, nil
	}

	if existingRef != "" {
		return Resolution{Ref: existingRef}, nil
	}

	return Resolution{Ref: defaultRef}, nil
}
