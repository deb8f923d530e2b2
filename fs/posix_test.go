package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdbstore/tdbstore/fs"
)

func TestPosixFilesystemBasics(t *testing.T) {
	p, err := fs.NewPosix(t.TempDir())
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.CreateDir("frag"))
	assert.True(t, p.IsDir("frag"))

	require.NoError(t, p.CreateFile(fs.Join("frag", "a.txt"), []byte("hello")))
	assert.True(t, p.IsFile(fs.Join("frag", "a.txt")))

	bs, err := p.ReadAll(fs.Join("frag", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(bs))

	size, err := p.FileSize(fs.Join("frag", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	partial, err := p.ReadAt(fs.Join("frag", "a.txt"), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "ell", string(partial))

	files, err := p.ListFiles("frag")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, files)
}

func TestPosixAppender(t *testing.T) {
	p, err := fs.NewPosix(t.TempDir())
	require.NoError(t, err)
	defer p.Close()

	app, err := p.CreateAppender("growing.tdb")
	require.NoError(t, err)
	_, err = app.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = app.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, app.Sync())
	require.NoError(t, app.Close())

	bs, err := p.ReadAll("growing.tdb")
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(bs))
}

func TestPosixDeleteDir(t *testing.T) {
	p, err := fs.NewPosix(t.TempDir())
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.CreateFile(fs.Join("d", "f.txt"), []byte("x")))
	require.NoError(t, p.DeleteDir("d"))
	assert.False(t, p.IsDir("d"))
}
