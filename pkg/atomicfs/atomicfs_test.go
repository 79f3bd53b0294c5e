package atomicfs_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/yandex/dhatfold/pkg/atomicfs"
)

func TestWriteFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	require.NoError(t, atomicfs.WriteFile(fs, "/out/dhat.folded", []byte("main 1\n")))
	require.NoError(t, atomicfs.WriteFile(fs, "/out/dhat.folded", []byte("main 2\n"), atomicfs.WithSync()))

	data, err := afero.ReadFile(fs, "/out/dhat.folded")
	require.NoError(t, err)
	require.Equal(t, "main 2\n", string(data))

	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteFromKeepsOldContentOnError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dhat.folded", []byte("old\n"), 0o644))

	failure := errors.New("extraction failed")
	err := atomicfs.WriteFrom(fs, "/dhat.folded", func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return failure
	})
	require.ErrorIs(t, err, failure)

	data, err := afero.ReadFile(fs, "/dhat.folded")
	require.NoError(t, err)
	require.Equal(t, "old\n", string(data))

	entries, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCreateOnDisk(t *testing.T) {
	fs := afero.NewOsFs()
	path := filepath.Join(t.TempDir(), "flamegraph.svg")

	f, err := atomicfs.Create(fs, path, atomicfs.WithMode(0o600))
	require.NoError(t, err)
	_, err = f.Write([]byte("<svg/>"))
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, f.Close())
	require.Error(t, f.Close())
	require.NoError(t, f.Discard())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
