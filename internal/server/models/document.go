// Package models defines server-side records persisted in the document
// store and the in-flight upload payloads that accompany them.
package models

import (
	"encoding/json"
	"maps"
	"time"
)

// Document is a content record of some kind (an article, a job posting).
//
// Fields holds scalar strings and string lists keyed by field name.
// Attachments maps a slot name to a blob URL or a sentinel, never "".
// Segments is only populated for kinds that support them.
type Document struct {
	ID          string
	Fields      map[string]any
	Attachments map[string]string
	Segments    []Segment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// String returns the string value of field name, or "" if absent.
func (d *Document) String(name string) string {
	s, _ := d.Fields[name].(string)
	return s
}

// Clone returns a deep copy safe to mutate.
func (d *Document) Clone() *Document {
	c := &Document{
		ID:          d.ID,
		Fields:      make(map[string]any, len(d.Fields)),
		Attachments: maps.Clone(d.Attachments),
		Segments:    append([]Segment(nil), d.Segments...),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for k, v := range d.Fields {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		c.Fields[k] = v
	}
	if c.Attachments == nil {
		c.Attachments = map[string]string{}
	}
	return c
}

// MarshalJSON flattens the document into a single object: fields and
// attachment slots at the top level next to _id, segments and timestamps.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+len(d.Attachments)+4)
	for k, v := range d.Fields {
		out[k] = v
	}
	for k, v := range d.Attachments {
		out[k] = v
	}
	out["_id"] = d.ID
	if d.Segments != nil {
		out["segments"] = d.Segments
	}
	out["createdAt"] = d.CreatedAt
	out["updatedAt"] = d.UpdatedAt
	return json.Marshal(out)
}

// Body is the persisted JSON shape of a document, without the columns
// stored alongside it (id and timestamps).
type Body struct {
	Fields      map[string]any    `json:"fields"`
	Attachments map[string]string `json:"attachments"`
	Segments    []Segment         `json:"segments,omitempty"`
}

// NormalizeValue converts JSON-decoded values back to the types the
// service works with: string lists come back from JSON as []any.
func NormalizeValue(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
