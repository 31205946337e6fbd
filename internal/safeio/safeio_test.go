package safeio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFSAllowsAbsoluteUnderRoot(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o644))

	fs, err := NewSafeFS(dir)
	require.NoError(t, err)
	b, err := fs.ReadFileLimit(p, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestSafeFSRejectsTraversal(t *testing.T) {
	fs, err := NewSafeFS(t.TempDir())
	require.NoError(t, err)
	_, err = fs.ReadFileLimit("../etc/passwd", 0)
	assert.Error(t, err)
}

func TestSafeFSRejectsSymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(target, []byte("s"), 0o644))

	root := t.TempDir()
	if err := os.Symlink(target, filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	fs, err := NewSafeFS(root)
	require.NoError(t, err)
	_, err = fs.ReadFileLimit("link.txt", 0)
	assert.Error(t, err)
}

func TestReadFileLimit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), []byte("0123456789"), 0o644))
	fs, err := NewSafeFS(dir)
	require.NoError(t, err)

	_, err = fs.ReadFileLimit("big.txt", 5)
	assert.True(t, errors.Is(err, ErrTooLarge))

	b, err := fs.ReadFileLimit("big.txt", 10)
	require.NoError(t, err)
	assert.Len(t, b, 10)
}

func TestWithin(t *testing.T) {
	base := filepath.Join(string(os.PathSeparator), "srv", "repos")
	assert.True(t, Within(base, base))
	assert.True(t, Within(base, filepath.Join(base, "a", "b")))
	assert.False(t, Within(base, filepath.Join(base+"-other", "a")))
	assert.False(t, Within(base, filepath.Join(string(os.PathSeparator), "srv")))
}
