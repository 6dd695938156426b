package documents

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var (
	t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

const articleBody = `{"fields":{"title":"Hello","brief":"b","tags":["t1","t2"]},` +
	`"attachments":{"title_image":"https://cdn/x.png"},` +
	`"segments":[{"id":"s1","head":"H","content":"c","seg_img":"none"}]}`

func TestFindByID_DecodesBody(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, body, created_at, updated_at FROM "articles" WHERE id = $1`)).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "body", "created_at", "updated_at"}).
			AddRow("a1", []byte(articleBody), t0, t1))

	doc, err := repo.FindByID(context.Background(), "articles", "a1")
	require.NoError(t, err)

	want := &models.Document{
		ID:          "a1",
		Fields:      map[string]any{"title": "Hello", "brief": "b", "tags": []string{"t1", "t2"}},
		Attachments: map[string]string{"title_image": "https://cdn/x.png"},
		Segments:    []models.Segment{{ID: "s1", Head: "H", Content: "c", Image: models.NoImage}},
		CreatedAt:   t0,
		UpdatedAt:   t1,
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM "careers"`).WithArgs("c1").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "careers", "c1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindByID_MalformedID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM "articles"`).WithArgs("nope").
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	_, err := repo.FindByID(context.Background(), "articles", "nope")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestList_ReturnsAllInOrder(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT id, body, created_at, updated_at FROM "careers" ORDER BY created_at, id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body", "created_at", "updated_at"}).
			AddRow("c1", `{"fields":{"position":"dev"},"attachments":{"file_url":"none"}}`, t0, t0).
			AddRow("c2", `{"fields":{"position":"ops"},"attachments":{}}`, t1, t1))

	docs, err := repo.List(context.Background(), "careers")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "dev", docs[0].String("position"))
	assert.Equal(t, "none", docs[0].Attachments["file_url"])
	assert.Equal(t, "ops", docs[1].String("position"))
	assert.NotNil(t, docs[1].Attachments)
	assert.Nil(t, docs[1].Segments)
}

func TestList_QueryError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`SELECT .* FROM "tags"`).WillReturnError(errors.New("conn refused"))

	_, err := repo.List(context.Background(), "tags")
	assert.ErrorContains(t, err, "conn refused")
}

func TestInsert_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	doc := &models.Document{
		ID:          "c1",
		Fields:      map[string]any{"position": "dev", "skills": []string{"go"}},
		Attachments: map[string]string{"file_url": "none"},
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "careers" (id, body, created_at, updated_at) VALUES ($1, $2::jsonb, $3, $4)`)).
		WithArgs("c1", `{"fields":{"position":"dev","skills":["go"]},"attachments":{"file_url":"none"}}`, t0, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), "careers", doc))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_Duplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`INSERT INTO "articles"`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Insert(context.Background(), "articles", &models.Document{ID: "a1"})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestUpdate_FieldsOnlyLeavesSegments(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE "articles" SET`).
		WithArgs("a1", `{"title":"New"}`, `{}`, nil, t1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "articles", "a1", Change{
		Fields:    map[string]any{"title": "New"},
		UpdatedAt: t1,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_ReplacesSegments(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE "articles" SET`).
		WithArgs("a1", `{}`, `{"title_image":"https://cdn/new.png"}`,
			`{"segments":[{"id":"s1","content":"c","seg_img":"none"}]}`, t1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "articles", "a1", Change{
		Attachments: map[string]string{"title_image": "https://cdn/new.png"},
		Segments:    []models.Segment{{ID: "s1", Content: "c", Image: models.NoImage}},
		SetSegments: true,
		UpdatedAt:   t1,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_EmptySegmentList(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE "articles" SET`).
		WithArgs("a1", `{}`, `{}`, `{"segments":[]}`, t1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "articles", "a1", Change{SetSegments: true, UpdatedAt: t1})
	require.NoError(t, err)
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`UPDATE "articles" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), "articles", "a1", Change{Fields: map[string]any{"title": "x"}})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "deleted", affected: 1},
		{name: "missing", affected: 0, wantErr: common.ErrorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "careers" WHERE id = $1`)).
				WithArgs("c1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Delete(context.Background(), "careers", "c1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFindReferencing(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT id, body, created_at, updated_at FROM "articles"\s+WHERE body->'fields'->\(\$1::text\) = to_jsonb\(\$2::text\)`).
		WithArgs("tags", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "body", "created_at", "updated_at"}).
			AddRow("a1", articleBody, t0, t1))

	docs, err := repo.FindReferencing(context.Background(), "articles", "tags", "t1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Hello", docs[0].String("title"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChange_EmptyAndKeys(t *testing.T) {
	assert.True(t, Change{}.Empty())

	c := Change{
		Fields:      map[string]any{"title": "x", "brief": "y"},
		Attachments: map[string]string{"title_image": "u"},
		SetSegments: true,
	}
	assert.False(t, c.Empty())
	assert.Equal(t, []string{"brief", "title", "title_image", "segments"}, c.Keys())
}
