package attachments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
)

const placeholder = "https://via.placeholder.com/200"

type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeUploader) Put(ctx context.Context, prefix string, u *models.Upload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, prefix+"/"+u.Filename)
	if f.err != nil {
		return "", f.err
	}
	return "https://blobs/" + prefix + "/" + u.Filename, nil
}

func upload(name string) *models.Upload {
	return &models.Upload{Filename: name, Body: strings.NewReader("x")}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		existing     string
		upload       *models.Upload
		wantRef      string
		wantReplaced string
		wantPuts     int
	}{
		{
			name:     "no file, no existing: default",
			wantRef:  placeholder,
			wantPuts: 0,
		},
		{
			name:     "no file, existing kept",
			existing: "https://blobs/old.png",
			wantRef:  "https://blobs/old.png",
		},
		{
			name:         "file replaces real existing",
			existing:     "https://blobs/old.png",
			upload:       upload("new.png"),
			wantRef:      "https://blobs/articles/titles/new.png",
			wantReplaced: "https://blobs/old.png",
			wantPuts:     1,
		},
		{
			name:     "file replaces placeholder without deletion",
			existing: placeholder,
			upload:   upload("new.png"),
			wantRef:  "https://blobs/articles/titles/new.png",
			wantPuts: 1,
		},
		{
			name:     "file replaces none sentinel without deletion",
			existing: models.NoImage,
			upload:   upload("new.png"),
			wantRef:  "https://blobs/articles/titles/new.png",
			wantPuts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUploader{}
			r := New(up, placeholder)

			res, err := r.Resolve(context.Background(), tt.existing, tt.upload, placeholder, "articles/titles")
			require.NoError(t, err)

			assert.Equal(t, tt.wantRef, res.Ref)
			assert.NotEmpty(t, res.Ref)
			assert.Equal(t, tt.wantReplaced, res.Replaced)
			assert.Len(t, up.calls, tt.wantPuts)
		})
	}
}

func TestResolve_UploadFailureIsStorageUnavailable(t *testing.T) {
	up := &fakeUploader{err: errors.New("bucket gone")}
	r := New(up)

	_, err := r.Resolve(context.Background(), "https://blobs/old.png", upload("a.png"), models.NoImage, "p")

	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.ErrorContains(t, err, "bucket gone")
}

func TestIsReal(t *testing.T) {
	r := New(&fakeUploader{}, placeholder)

	assert.False(t, r.IsReal(""))
	assert.False(t, r.IsReal(models.NoImage))
	assert.False(t, r.IsReal(placeholder))
	assert.True(t, r.IsReal("https://blobs/a.png"))
}
