package browser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermark_IgnoresPreexistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.xlsx"), []byte("old"), 0644))

	w, err := TakeWatermark(dir)
	require.NoError(t, err)

	_, err = w.AwaitNewFile([]string{".xlsx"}, 50*time.Millisecond, 400*time.Millisecond)
	assert.ErrorIs(t, err, ErrDownloadTimeout)
}

func TestWatermark_FindsSettledNewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.xlsx"), []byte("old"), 0644))

	w, err := TakeWatermark(dir)
	require.NoError(t, err)

	target := filepath.Join(dir, "청구내역서.xlsx")
	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(target, []byte("export data"), 0644)
	}()

	got, err := w.AwaitNewFile([]string{".xlsx"}, 100*time.Millisecond, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, target, got)
}

func TestWatermark_SkipsInFlightArtifacts(t *testing.T) {
	dir := t.TempDir()
	w, err := TakeWatermark(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "export.xlsx.crdownload"), []byte("partial"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chunk.tmp"), []byte("partial"), 0644))

	_, err = w.AwaitNewFile(nil, 50*time.Millisecond, 400*time.Millisecond)
	assert.ErrorIs(t, err, ErrDownloadTimeout)
}

func TestWatermark_ExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	w, err := TakeWatermark(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("nope"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.XLSX"), []byte("data"), 0644))

	got, err := w.AwaitNewFile([]string{".xlsx"}, 50*time.Millisecond, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.XLSX"), got)
}

func TestDownloadLock_Exclusion(t *testing.T) {
	dir := t.TempDir()

	first := NewDownloadLock(dir)
	require.NoError(t, first.Acquire(time.Second))

	second := NewDownloadLock(dir)
	err := second.Acquire(300 * time.Millisecond)
	assert.Error(t, err)

	require.NoError(t, first.Release())
	assert.NoError(t, second.Acquire(time.Second))
	assert.NoError(t, second.Release())
}
