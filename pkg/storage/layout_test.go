package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdheenr/Auto-Insta/pkg/logger"
)

func newTestLayout(t *testing.T) *Layout {
	t.Helper()
	l := NewLayout(t.TempDir(), "alice", logger.NewNopLogger())
	require.NoError(t, l.EnsureDirs())
	return l
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestEnsureDirs(t *testing.T) {
	l := newTestLayout(t)

	for _, dir := range []string{l.Root, l.MediaDir(), l.MetadataDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestMoveSorted(t *testing.T) {
	l := newTestLayout(t)

	touch(t, filepath.Join(l.Root, "2024-01-01_00-00-00_UTC.jpg"))
	touch(t, filepath.Join(l.Root, "2024-01-01_00-00-00_UTC.mp4"))
	touch(t, filepath.Join(l.Root, "2024-01-01_00-00-00_UTC.json"))
	touch(t, filepath.Join(l.Root, "2024-01-01_00-00-00_UTC.txt"))
	touch(t, filepath.Join(l.Root, "download.part"))
	touch(t, filepath.Join(l.Root, "scratch.tmp"))
	touch(t, filepath.Join(l.Root, "unknown.bin"))

	moved, err := l.MoveSorted()
	require.NoError(t, err)
	assert.Equal(t, 4, moved)

	assert.FileExists(t, filepath.Join(l.MediaDir(), "2024-01-01_00-00-00_UTC.jpg"))
	assert.FileExists(t, filepath.Join(l.MediaDir(), "2024-01-01_00-00-00_UTC.mp4"))
	assert.FileExists(t, filepath.Join(l.MetadataDir(), "2024-01-01_00-00-00_UTC.json"))
	assert.FileExists(t, filepath.Join(l.MetadataDir(), "2024-01-01_00-00-00_UTC.txt"))

	// Partial and unrecognized files stay behind.
	assert.FileExists(t, filepath.Join(l.Root, "download.part"))
	assert.FileExists(t, filepath.Join(l.Root, "scratch.tmp"))
	assert.FileExists(t, filepath.Join(l.Root, "unknown.bin"))
}

func TestMoveSortedNeverOverwrites(t *testing.T) {
	l := newTestLayout(t)

	dst := filepath.Join(l.MediaDir(), "2024-01-01_00-00-00_UTC.jpg")
	require.NoError(t, os.WriteFile(dst, []byte("sorted earlier"), 0o644))
	touch(t, filepath.Join(l.Root, "2024-01-01_00-00-00_UTC.jpg"))

	moved, err := l.MoveSorted()
	require.NoError(t, err)
	assert.Equal(t, 0, moved)

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "sorted earlier", string(content))
	// The raw duplicate is gone.
	assert.NoFileExists(t, filepath.Join(l.Root, "2024-01-01_00-00-00_UTC.jpg"))
}

func TestMoveSortedMissingRoot(t *testing.T) {
	l := NewLayout(t.TempDir(), "ghost", logger.NewNopLogger())
	moved, err := l.MoveSorted()
	require.NoError(t, err)
	assert.Equal(t, 0, moved)
}

func TestHighlightsDir(t *testing.T) {
	l := NewLayout("/base", "alice", logger.NewNopLogger())
	assert.Equal(t, filepath.Join("/base", "alice", "highlights", "Travel 2024"), l.HighlightsDir("Travel 2024"))
	assert.Equal(t, filepath.Join("/base", "alice", "highlights", "untitled"), l.HighlightsDir(""))
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Travel 2024", "Travel 2024"},
		{"  beach/trip  ", "beach_trip"},
		{"***", "untitled"},
		{"", "untitled"},
		{"café☀️", "café"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeTitle(tt.in), tt.in)
	}
}
