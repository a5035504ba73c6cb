package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/storage"
)

func TestLocal_Upload(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.NewLocal(dir, "http://localhost:8080/uploads/")
	require.NoError(t, err)

	ref, err := s.Upload(context.Background(), []byte("medical note"), "Note.PDF")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(ref, "http://localhost:8080/uploads/"))
	assert.True(t, strings.HasSuffix(ref, ".pdf"))

	key := strings.TrimPrefix(ref, "http://localhost:8080/uploads/")
	content, err := os.ReadFile(filepath.Join(s.Dir(), key))
	require.NoError(t, err)
	assert.Equal(t, "medical note", string(content))
}

func TestLocal_UploadIgnoresClientPath(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.NewLocal(dir, "")
	require.NoError(t, err)

	ref, err := s.Upload(context.Background(), []byte("x"), "../../etc/passwd")
	require.NoError(t, err)

	assert.NotContains(t, ref, "..")
	assert.NotContains(t, ref, "/")
	_, err = os.Stat(filepath.Join(s.Dir(), ref))
	assert.NoError(t, err)
}

func TestLocal_UniqueKeys(t *testing.T) {
	s, err := storage.NewLocal(t.TempDir(), "")
	require.NoError(t, err)

	a, err := s.Upload(context.Background(), []byte("a"), "same.png")
	require.NoError(t, err)
	b, err := s.Upload(context.Background(), []byte("b"), "same.png")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLocal_WeirdExtensionDropped(t *testing.T) {
	s, err := storage.NewLocal(t.TempDir(), "")
	require.NoError(t, err)

	ref, err := s.Upload(context.Background(), []byte("a"), "file.p$f")
	require.NoError(t, err)
	assert.NotContains(t, ref, ".")
}

func TestLocal_CancelledContext(t *testing.T) {
	s, err := storage.NewLocal(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Upload(ctx, []byte("a"), "a.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}
