package atomicfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

////////////////////////////////////////////////////////////////////////////////

type AtomicityLevel int

const (
	// Rename only. The file is either old or new, but may be empty after a crash.
	AtomicityNoSync AtomicityLevel = iota
	// Sync before rename.
	AtomicityFull
)

////////////////////////////////////////////////////////////////////////////////

// File buffers writes in a temporary file next to the destination
// and renames it over the destination on Close.
type File struct {
	fs        afero.Fs
	tmpfile   afero.File
	dstpath   string
	atomicity AtomicityLevel
	mode      os.FileMode
}

////////////////////////////////////////////////////////////////////////////////

type FileOption func(f *File)

func WithSync() FileOption {
	return func(f *File) {
		f.atomicity = AtomicityFull
	}
}

func WithMode(mode os.FileMode) FileOption {
	return func(f *File) {
		f.mode = mode
	}
}

////////////////////////////////////////////////////////////////////////////////

const tmpsuffix = ".tmp-"

const defaultMode os.FileMode = 0o644

func Create(fs afero.Fs, path string, opts ...FileOption) (*File, error) {
	dir, base := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}

	tmpf, err := afero.TempFile(fs, dir, base+tmpsuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}

	f := &File{
		fs:        fs,
		tmpfile:   tmpf,
		dstpath:   path,
		atomicity: AtomicityNoSync,
		mode:      defaultMode,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *File) Name() string {
	return f.dstpath
}

func (f *File) Write(data []byte) (int, error) {
	if f.tmpfile == nil {
		return 0, os.ErrClosed
	}
	return f.tmpfile.Write(data)
}

// Discard removes the temporary file, leaving the destination untouched.
// It is safe to call after Close.
func (f *File) Discard() error {
	if f.tmpfile == nil {
		return nil
	}
	tmpname := f.tmpfile.Name()
	defer func() {
		f.tmpfile = nil
	}()

	err := f.tmpfile.Close()
	if err != nil {
		_ = f.fs.Remove(tmpname)
		return err
	}

	return f.fs.Remove(tmpname)
}

func (f *File) Close() (err error) {
	if f.tmpfile == nil {
		return fmt.Errorf("calling atomicfs.File.Close on already finished atomicfs.File")
	}
	defer func() {
		if err != nil {
			_ = f.Discard()
		} else {
			f.tmpfile = nil
		}
	}()

	if f.atomicity != AtomicityNoSync {
		err = f.tmpfile.Sync()
		if err != nil {
			return err
		}
	}

	tmpname := f.tmpfile.Name()
	err = f.tmpfile.Close()
	if err != nil {
		return err
	}

	err = f.fs.Chmod(tmpname, f.mode)
	if err != nil {
		return err
	}

	return f.fs.Rename(tmpname, f.dstpath)
}

////////////////////////////////////////////////////////////////////////////////

var _ io.WriteCloser = (*File)(nil)

////////////////////////////////////////////////////////////////////////////////
