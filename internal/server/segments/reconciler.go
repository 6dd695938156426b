// Package segments aligns a submitted segment list with the stored one and
// works out which segment images are no longer referenced.
package segments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/contentkeeper/internal/server/attachments"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
)

// AttachmentResolver is satisfied by *attachments.Resolver.
type AttachmentResolver interface {
	Resolve(ctx context.Context, existingRef string, upload *models.Upload, defaultRef, prefix string) (attachments.Resolution, error)
	IsReal(ref string) bool
}

// Result is the reconciled segment list and the image references it no
// longer uses.
type Result struct {
	Segments []models.Segment
	Orphans  []string
}

// Reconciler reconciles segment lists for one document kind.
type Reconciler struct {
	resolver AttachmentResolver
	prefix   string
	limit    int
	newID    func() string
}

// New returns a Reconciler that uploads segment images under prefix with at
// most limit uploads in flight (limit <= 0 means no limit).
func New(resolver AttachmentResolver, prefix string, limit int) *Reconciler {
	return &Reconciler{
		resolver: resolver,
		prefix:   prefix,
		limit:    limit,
		newID:    func() string { return uuid.NewString() },
	}
}

// Terminated returns how many leading submissions carry content. The wire
// format ends the list at the first submission without it.
func Terminated(incoming []models.SegmentSubmission) int {
	for i, s := range incoming {
		if strings.TrimSpace(s.Content) == "" {
			return i
		}
	}
	return len(incoming)
}

// Reconcile builds the new segment list from incoming, matched against
// existing, uploading any submitted images. Nothing is deleted here: the
// returned orphans are for the caller to remove after it has persisted the
// new list. Any failed upload fails the whole call.
func (rc *Reconciler) Reconcile(ctx context.Context, existing []models.Segment, incoming []models.SegmentSubmission) (Result, error) {
	n := Terminated(incoming)
	matches := match(existing, incoming[:n])

	out := make([]models.Segment, n)

	g, gctx := errgroup.WithContext(ctx)
	if rc.limit > 0 {
		g.SetLimit(rc.limit)
	}

	for i := 0; i < n; i++ {
		sub := incoming[i]
		var prev *models.Segment
		if m := matches[i]; m >= 0 {
			prev = &existing[m]
		}

		seg := models.Segment{
			Head:    sub.Head,
			Subhead: sub.Subhead,
			Content: sub.Content,
			Image:   models.NoImage,
		}
		existingRef := models.NoImage
		if prev != nil {
			seg.ID = prev.ID
			existingRef = prev.Image
		}
		if seg.ID == "" {
			seg.ID = rc.newID()
		}

		if sub.Image == nil && sub.RemoveImage {
			out[i] = seg
			continue
		}

		if sub.Image == nil {
			if existingRef != "" {
				seg.Image = existingRef
			}
			out[i] = seg
			continue
		}

		g.Go(func() error {
			res, err := rc.resolver.Resolve(gctx, existingRef, sub.Image, models.NoImage, rc.prefix)
			if err != nil {
				return err
			}
			seg.Image = res.Ref
			out[i] = seg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	return Result{Segments: out, Orphans: rc.orphans(existing, out)}, nil
}

// match maps each incoming position to an index in existing, or -1 for a
// new segment. A submission carrying a known id is matched by id; one
// without an id falls back to its position unless that stored segment has
// been claimed by id elsewhere.
func match(existing []models.Segment, incoming []models.SegmentSubmission) []int {
	byID := make(map[string]int, len(existing))
	for i, s := range existing {
		if s.ID != "" {
			if _, dup := byID[s.ID]; !dup {
				byID[s.ID] = i
			}
		}
	}

	result := make([]int, len(incoming))
	claimed := make([]bool, len(existing))

	for i, sub := range incoming {
		result[i] = -1
		if sub.ID == "" {
			continue
		}
		if idx, ok := byID[sub.ID]; ok && !claimed[idx] {
			result[i] = idx
			claimed[idx] = true
		}
	}

	for i, sub := range incoming {
		if result[i] >= 0 || sub.ID != "" {
			continue
		}
		if i < len(existing) && !claimed[i] {
			result[i] = i
			claimed[i] = true
		}
	}

	return result
}

// orphans returns real image refs of old that are absent from current, in
// their original order and without duplicates.
func (rc *Reconciler) orphans(old, current []models.Segment) []string {
	live := make(map[string]struct{}, len(current))
	for _, s := range current {
		live[s.Image] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, s := range old {
		if !rc.resolver.IsReal(s.Image) {
			continue
		}
		if _, ok := live[s.Image]; ok {
			continue
		}
		if _, ok := seen[s.Image]; ok {
			continue
		}
		seen[s.Image] = struct{}{}
		out = append(out, s.Image)
	}
	return out
}
