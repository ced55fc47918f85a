package model_test

import (
	"strings"
	"testing"

	"github.com/iMan-sources/crawl-repo-final/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func TestRepoRowsFromMessagesTruncates(t *testing.T) {
	messages := []model.RepoMessage{
		{
			Rank:        1,
			User:        strings.Repeat("u", 300),
			Name:        "repo",
			FullName:    "user/repo",
			Stars:       100,
			Description: strings.Repeat("d", 70000),
		},
	}

	rows := model.RepoRowsFromMessages(messages)
	require.Len(t, rows, 1)
	require.Len(t, rows[0].User, 250, "giá trị quá dài phải được cắt về giới hạn cột")
	require.Len(t, rows[0].Description, 65000)
	require.Equal(t, "user/repo", rows[0].FullName)
	require.False(t, rows[0].CreatedAt.IsZero())
}

func TestReleaseRowsFromMessagesKeepApiId(t *testing.T) {
	rows := model.ReleaseRowsFromMessages([]model.ReleaseMessage{
		{ID: 101, TagName: "v1.0.0", Content: "notes", RepoID: 7},
	})
	require.Len(t, rows, 1)
	require.Equal(t, int64(101), rows[0].ID, "id của release giữ nguyên từ API, không auto increment")
	require.Equal(t, int64(7), rows[0].RepoID)
}

func TestRepoConflictClauseModes(t *testing.T) {
	upsert, ok := model.RepoConflictClause(model.ConflictUpsert).(clause.OnConflict)
	require.True(t, ok)
	require.False(t, upsert.DoNothing)
	require.Equal(t, "full_name", upsert.Columns[0].Name)
	require.NotEmpty(t, upsert.DoUpdates)

	skip, ok := model.RepoConflictClause(model.ConflictSkip).(clause.OnConflict)
	require.True(t, ok)
	require.True(t, skip.DoNothing, "chế độ skip giữ bản ghi first-seen")
}

func TestReleaseConflictClauseModes(t *testing.T) {
	upsert, ok := model.ReleaseConflictClause(model.ConflictUpsert).(clause.OnConflict)
	require.True(t, ok)
	require.Equal(t, "id", upsert.Columns[0].Name)

	skip, ok := model.ReleaseConflictClause(model.ConflictSkip).(clause.OnConflict)
	require.True(t, ok)
	require.True(t, skip.DoNothing)
}

func TestRecordKeys(t *testing.T) {
	repo := model.RepoMessage{FullName: "user/repo"}
	require.Equal(t, "user/repo", repo.Key())

	release := model.ReleaseMessage{ID: 101, RepoID: 7}
	require.Equal(t, "7_101", release.Key())

	// Cùng release id ở hai repo khác nhau vẫn là hai key khác nhau
	other := model.ReleaseMessage{ID: 101, RepoID: 8}
	require.NotEqual(t, release.Key(), other.Key())
}

func TestTruncateString(t *testing.T) {
	require.Equal(t, "abc", model.TruncateString("abc", 10))
	require.Equal(t, "ab", model.TruncateString("abc", 2))
	require.Equal(t, "", model.TruncateString("", 5))
}
