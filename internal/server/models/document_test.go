package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_MarshalJSON_Flattens(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	d := Document{
		ID:          "a1",
		Fields:      map[string]any{"title": "T", "tags": []string{"x"}},
		Attachments: map[string]string{"title_image": "https://img"},
		Segments:    []Segment{{ID: "s1", Content: "C", Image: NoImage}},
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	b, err := json.Marshal(d)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "a1", got["_id"])
	assert.Equal(t, "T", got["title"])
	assert.Equal(t, "https://img", got["title_image"])
	assert.Len(t, got["segments"], 1)
}

func TestDocument_CloneIsDeep(t *testing.T) {
	d := &Document{
		Fields:      map[string]any{"tags": []string{"a"}},
		Attachments: map[string]string{"title_image": "x"},
		Segments:    []Segment{{ID: "s1"}},
	}
	c := d.Clone()
	c.Fields["tags"].([]string)[0] = "b"
	c.Attachments["title_image"] = "y"
	c.Segments[0].ID = "s2"

	assert.Equal(t, []string{"a"}, d.Fields["tags"])
	assert.Equal(t, "x", d.Attachments["title_image"])
	assert.Equal(t, "s1", d.Segments[0].ID)
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NormalizeValue([]any{"a", "b"}))
	assert.Equal(t, "x", NormalizeValue("x"))
}
