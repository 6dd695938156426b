package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/server/kinds"
	"github.com/dmitrijs2005/contentkeeper/internal/server/lifecycle"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
)

// multipartMemory is how much of a multipart body is kept in memory before
// file parts spill to disk.
const multipartMemory = 8 << 20

// segmentsKey carries the segment list as a JSON array.
const segmentsKey = "segments"

// segmentImageKey is the form key of the file for segment i.
func segmentImageKey(i int) string {
	return fmt.Sprintf("segments[%d][image]", i)
}

// parsedForm is a parsed request body. Close releases opened files and
// temporary files of the multipart reader.
type parsedForm struct {
	values map[string][]string
	files  map[string][]*multipart.FileHeader
	form   *multipart.Form
	opened []io.Closer
	// whole is set for JSON bodies, whose list items are never comma split.
	whole bool
}

func (p *parsedForm) Close() {
	for _, c := range p.opened {
		_ = c.Close()
	}
	if p.form != nil {
		_ = p.form.RemoveAll()
	}
}

func (p *parsedForm) value(key string) (string, bool) {
	v, ok := p.values[key]
	if !ok || len(v) == 0 {
		return "", ok
	}
	return v[0], true
}

// upload opens the first non-empty file under key. A part without a
// filename is what browsers send when no file was chosen.
func (p *parsedForm) upload(key string) (*models.Upload, error) {
	for _, fh := range p.files[key] {
		if fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", key, err)
		}
		p.opened = append(p.opened, f)
		return &models.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		}, nil
	}
	return nil, nil
}

// parseForm reads a multipart or urlencoded body limited to maxSize bytes.
func parseForm(w http.ResponseWriter, r *http.Request, maxSize int64) (*parsedForm, error) {
	if maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	}

	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		return parseJSONBody(r, maxSize)
	}

	err := r.ParseMultipartForm(multipartMemory)
	switch {
	case err == nil:
		return &parsedForm{
			values: r.MultipartForm.Value,
			files:  r.MultipartForm.File,
			form:   r.MultipartForm,
		}, nil
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			return nil, formError(err, maxSize)
		}
		return &parsedForm{values: r.PostForm}, nil
	default:
		return nil, formError(err, maxSize)
	}
}

// parseJSONBody reads a flat JSON object into form values: scalars become
// one value, arrays one value per item and segments stays raw JSON. A null
// member is treated as absent.
func parseJSONBody(r *http.Request, maxSize int64) (*parsedForm, error) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, formError(err, maxSize)
	}

	values := make(map[string][]string, len(body))
	for key, raw := range body {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, formError(err, maxSize)
		}
		if v == nil {
			continue
		}
		if key == segmentsKey {
			values[key] = []string{string(raw)}
			continue
		}
		switch v := v.(type) {
		case []any:
			list := make([]string, 0, len(v))
			for _, item := range v {
				list = append(list, fmt.Sprint(item))
			}
			values[key] = list
		default:
			values[key] = []string{fmt.Sprint(v)}
		}
	}
	return &parsedForm{values: values, whole: true}, nil
}

func formError(err error, maxSize int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return common.NewValidationError("body", fmt.Sprintf("request body exceeds %d bytes", maxSize))
	}
	return common.NewValidationError("body", "malformed body: "+err.Error())
}

// submission translates the form into a lifecycle submission for kind.
// List fields may be repeated or comma separated.
func (p *parsedForm) submission(kind kinds.Kind) (lifecycle.Submission, error) {
	sub := lifecycle.Submission{
		Fields:  map[string]any{},
		Uploads: map[string]*models.Upload{},
	}

	for _, f := range kind.Fields {
		raw, ok := p.values[f.Name]
		if !ok {
			continue
		}
		if !f.IsList() {
			v, _ := p.value(f.Name)
			sub.Fields[f.Name] = v
			continue
		}
		list := []string{}
		for _, v := range raw {
			items := []string{v}
			if !p.whole {
				items = strings.Split(v, ",")
			}
			for _, item := range items {
				if item = strings.TrimSpace(item); item != "" {
					list = append(list, item)
				}
			}
		}
		sub.Fields[f.Name] = list
	}

	for _, slot := range kind.Slots {
		u, err := p.upload(slot.FormKey)
		if err != nil {
			return sub, err
		}
		if u != nil {
			sub.Uploads[slot.Name] = u
		}
	}

	if !kind.Segments {
		return sub, nil
	}
	raw, ok := p.value(segmentsKey)
	if !ok {
		return sub, nil
	}
	sub.SegmentsPresent = true
	if strings.TrimSpace(raw) == "" {
		return sub, nil
	}
	if err := json.Unmarshal([]byte(raw), &sub.Segments); err != nil {
		return sub, common.NewValidationError(segmentsKey, "must be a JSON array of segments")
	}
	for i := range sub.Segments {
		u, err := p.upload(segmentImageKey(i))
		if err != nil {
			return sub, err
		}
		sub.Segments[i].Image = u
	}
	return sub, nil
}
