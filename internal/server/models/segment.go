package models

// NoImage is the sentinel stored in Segment.Image (and in optional
// attachment slots) when no blob is attached.
const NoImage = "none"

// Segment is one ordered section of a document.
type Segment struct {
	// ID is assigned when the segment is first stored and kept across edits.
	ID      string `json:"id"`
	Head    string `json:"head,omitempty"`
	Subhead string `json:"subhead,omitempty"`
	Content string `json:"content"`
	// Image is a blob URL or NoImage.
	Image string `json:"seg_img"`
}

// SegmentSubmission is one segment as received from a client, before its
// attachment has been resolved.
type SegmentSubmission struct {
	ID          string `json:"id,omitempty"`
	Head        string `json:"head"`
	Subhead     string `json:"subhead"`
	Content     string `json:"content"`
	RemoveImage bool   `json:"remove_image,omitempty"`

	// Image is the file submitted for this position, if any.
	Image *Upload `json:"-"`
}
