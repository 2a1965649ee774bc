package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/logging"
)

func newTestDirectory(t *testing.T, root string) Backend {
	t.Helper()
	b, err := New(context.Background(), config.DestinationSpec{
		Path: root,
		Kind: config.DestDirectory,
	}, Deps{Logger: logging.ForTest(t)})
	require.NoError(t, err)
	return b
}

func TestDirectoryPushTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("alpha"), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("beta"), 0o644))
	require.NoError(t, os.Symlink("a.txt", filepath.Join(src, "link")))

	root := filepath.Join(t.TempDir(), "backups")
	b := newTestDirectory(t, root)

	err := b.Push(context.Background(), Payload{Path: src, IsDir: true}, "docs_20260830T120000Z")
	require.NoError(t, err)

	target := filepath.Join(root, "docs_20260830T120000Z")
	data, err := os.ReadFile(filepath.Join(target, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "beta", string(data))

	info, err := os.Stat(filepath.Join(target, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(target, "link"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", link)
}

func TestDirectoryPushArtifact(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "docs_20260830T120000Z.tar.zst")
	require.NoError(t, os.WriteFile(artifact, []byte("archive"), 0o644))

	root := filepath.Join(t.TempDir(), "backups")
	b := newTestDirectory(t, root)

	err := b.Push(context.Background(), Payload{Path: artifact}, "docs_20260830T120000Z.tar.zst")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "docs_20260830T120000Z.tar.zst"))
	require.NoError(t, err)
	assert.Equal(t, "archive", string(data))
}

func TestDirectoryListAndDelete(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "docs_20260829T120000Z"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "docs_20260830T120000Z"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644))

	b := newTestDirectory(t, root)

	entries, err := b.List(context.Background(), "docs")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "docs_20260829T120000Z", entries[0].Name)

	require.NoError(t, b.Delete(context.Background(), entries[0]))

	entries, err = b.List(context.Background(), "docs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "docs_20260830T120000Z", entries[0].Name)
}

func TestDirectoryListMissingRootIsEmpty(t *testing.T) {
	b := newTestDirectory(t, filepath.Join(t.TempDir(), "nope"))

	entries, err := b.List(context.Background(), "docs")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnsupportedDestinationKinds(t *testing.T) {
	for _, kind := range []config.DestinationKind{config.DestZFS, config.DestBtrfs, "tape"} {
		_, err := New(context.Background(), config.DestinationSpec{Path: "/x", Kind: kind},
			Deps{Logger: logging.ForTest(t)})
		assert.Error(t, err, "kind %s", kind)
	}
}
