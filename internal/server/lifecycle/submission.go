package lifecycle

import "github.com/dmitrijs2005/contentkeeper/internal/server/models"

// Submission is a parsed create or update request for one document.
type Submission struct {
	// Fields holds the submitted fields only. Values are string or []string.
	// On update a field missing from the map keeps its stored value.
	Fields map[string]any
	// Uploads maps a slot name to the file submitted for it.
	Uploads map[string]*models.Upload
	// SegmentsPresent distinguishes "no segment list sent" from an
	// empty list, which clears the segments on update.
	SegmentsPresent bool
	Segments        []models.SegmentSubmission
}

// UpdateResult reports what an update changed. Changed is empty when the
// submission matched the stored document.
type UpdateResult struct {
	Document *models.Document
	Changed  []string
}
