package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening an already migrated file must not fail.
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	var v int
	require.NoError(t, db.Pool.QueryRow(`PRAGMA user_version;`).Scan(&v))
	assert.Equal(t, 1, v)
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	id, err := db.BeginRun("task-1", KindCollection, "다온아이앤씨", "2025-05-01", "2025-05-31")
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, db.AddArtifact(id, "다온 청구내역서.xlsx", "일반"))
	require.NoError(t, db.AddArtifact(id, "다온 선불.xlsx", "선불"))
	require.NoError(t, db.FinishRun(id, "completed", ""))

	runs, err := db.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	r := runs[0]
	assert.Equal(t, "task-1", r.TaskID)
	assert.Equal(t, KindCollection, r.Kind)
	assert.Equal(t, "completed", r.Status)
	assert.Equal(t, []string{"다온 청구내역서.xlsx", "다온 선불.xlsx"}, r.Files)
	assert.NotEmpty(t, r.FinishedAt)
}

func TestRecentRuns_OrderAndLimit(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 3; i++ {
		id, err := db.BeginRun("", KindSubmission, "", "2025-05-01", "2025-05-31")
		require.NoError(t, err)
		require.NoError(t, db.FinishRun(id, "completed", ""))
	}

	runs, err := db.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Greater(t, runs[0].ID, runs[1].ID)
}

func TestLastSuccessFor(t *testing.T) {
	db := openTestDB(t)

	_, err := db.LastSuccessFor("앤하우스")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	failed, err := db.BeginRun("", KindCollection, "앤하우스", "2025-04-01", "2025-04-30")
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(failed, "failed", "로그인 실패"))

	ok, err := db.BeginRun("", KindCollection, "앤하우스", "2025-05-01", "2025-05-31")
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(ok, "completed", ""))

	r, err := db.LastSuccessFor("앤하우스")
	require.NoError(t, err)
	assert.Equal(t, ok, r.ID)
	assert.Equal(t, "2025-05-01", r.RangeStart)
}
