// Package kinds describes the document kinds managed by the server: which
// fields they carry, which are required, which attachment slots they own
// and whether they hold an ordered list of segments.
package kinds

import (
	"slices"

	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
)

// FieldType tells the form parser and validator how to read a field.
type FieldType int

const (
	// Text is a single string value.
	Text FieldType = iota
	// List is a list of free-form strings.
	List
	// Ref is a single identifier of another record.
	Ref
	// RefList is a list of identifiers of other records.
	RefList
)

// Field describes one submitted field of a kind.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	MaxLen   int
}

// IsList reports whether the field holds a list of strings.
func (f Field) IsList() bool { return f.Type == List || f.Type == RefList }

// Slot describes an attachment owned by the document itself.
type Slot struct {
	// Name is the key the reference is stored under.
	Name string
	// FormKey is the multipart key the file arrives under.
	FormKey string
	// Default is stored when no file was ever uploaded.
	Default string
	// Prefix groups uploaded blobs in the object store.
	Prefix string
}

// Kind is the descriptor the lifecycle manager is parameterized with.
type Kind struct {
	// Name is also the collection (table) name.
	Name string
	// Label names one document in messages, e.g. "article".
	Label string
	// TitleField names the field used when listing documents to humans.
	TitleField string
	Fields     []Field
	Slots      []Slot

	Segments      bool
	SegmentPrefix string
	// MinSegments is enforced on create only.
	MinSegments int
}

// Sentinels lists the slot defaults of this kind. They are stored in
// place of a blob URL and never point at an owned blob.
func (k Kind) Sentinels() []string {
	out := make([]string, 0, len(k.Slots))
	for _, s := range k.Slots {
		if !slices.Contains(out, s.Default) {
			out = append(out, s.Default)
		}
	}
	return out
}

const (
	ArticlesName = "articles"
	CareersName  = "careers"

	// CategoryField and TagsField are the article fields guarded by the
	// taxonomy referential-integrity check.
	CategoryField = "category"
	TagsField     = "tags"
)

// DefaultPlaceholderURL is used for article title images when the
// configuration does not provide one.
const DefaultPlaceholderURL = "https://via.placeholder.com/200"

// Articles returns the article kind. placeholder is stored as the title
// image until one is uploaded.
func Articles(placeholder string) Kind {
	if placeholder == "" {
		placeholder = DefaultPlaceholderURL
	}
	return Kind{
		Name:       ArticlesName,
		Label:      "article",
		TitleField: "title",
		Fields: []Field{
			{Name: "title", Type: Text, Required: true, MaxLen: 300},
			{Name: "brief", Type: Text, Required: true, MaxLen: 2000},
			{Name: CategoryField, Type: Ref},
			{Name: TagsField, Type: RefList},
		},
		Slots: []Slot{
			{Name: "title_image", FormKey: "titleImage", Default: placeholder, Prefix: "articles/titles"},
		},
		Segments:      true,
		SegmentPrefix: "articles/segments",
		MinSegments:   1,
	}
}

// Careers returns the job posting kind.
func Careers() Kind {
	return Kind{
		Name:       CareersName,
		Label:      "job posting",
		TitleField: "position",
		Fields: []Field{
			{Name: "position", Type: Text, Required: true, MaxLen: 300},
			{Name: "location", Type: Text, Required: true, MaxLen: 300},
			{Name: "duration", Type: Text, Required: true, MaxLen: 100},
			{Name: "pay", Type: Text, Required: true, MaxLen: 100},
			{Name: "job_desc", Type: Text, Required: true},
			{Name: "skills", Type: List, Required: true},
		},
		Slots: []Slot{
			{Name: "file_url", FormKey: "file", Default: models.NoImage, Prefix: "careers/files"},
		},
	}
}
