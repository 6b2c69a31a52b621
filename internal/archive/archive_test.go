package archive

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/quail/internal/config"
)

func TestImplementsStorage(t *testing.T) {
	var _ Storage = (*LocalFS)(nil)
	var _ Storage = (*S3Storage)(nil)
}

func TestBacktestKey(t *testing.T) {
	userID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	backtestID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	assert.Equal(t,
		"backtests/11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222.json",
		BacktestKey(userID, backtestID))
}

func TestLocalFS_WriteReadDelete(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "backtests/u/b.json", []byte(`{"totalReturn":0.1}`)))

	got, err := fs.Read(ctx, "backtests/u/b.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalReturn":0.1}`, string(got))

	exists, err := fs.Exists(ctx, "backtests/u/b.json")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, fs.Delete(ctx, "backtests/u/b.json"))
	exists, err = fs.Exists(ctx, "backtests/u/b.json")
	require.NoError(t, err)
	assert.False(t, exists)

	// second delete is a no-op
	assert.NoError(t, fs.Delete(ctx, "backtests/u/b.json"))
}

func TestLocalFS_ReadMissing(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Read(context.Background(), "nope.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalFS_Overwrite(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewLocalFS(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "a.json", []byte("1")))
	require.NoError(t, fs.Write(ctx, "a.json", []byte("2")))

	got, err := fs.Read(ctx, "a.json")
	require.NoError(t, err)
	assert.Equal(t, "2", string(got))

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	assert.Empty(t, matches)
}

func TestS3Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "file.json", "file.json"},
		{"quail", "file.json", "quail/file.json"},
		{"quail/", "file.json", "quail/file.json"},
	}

	for _, tt := range tests {
		s := &S3Storage{prefix: strings.TrimSuffix(tt.prefix, "/")}
		assert.Equal(t, tt.want, s.key(tt.path))
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, config.ArchiveConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = New(ctx, config.ArchiveConfig{
		Enabled: true,
		Backend: "local",
		Local:   config.LocalFSConfig{BasePath: t.TempDir()},
	})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, store)

	_, err = New(ctx, config.ArchiveConfig{Enabled: true, Backend: "gcs"})
	assert.Error(t, err)
}
