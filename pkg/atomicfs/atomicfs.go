package atomicfs

import (
	"io"

	"github.com/spf13/afero"
)

// Atomic version of `afero.WriteFile`.
func WriteFile(fs afero.Fs, path string, data []byte, opts ...FileOption) error {
	return WriteFrom(fs, path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}, opts...)
}

// WriteFrom streams the output of write into path.
// The destination is replaced only if write succeeds.
func WriteFrom(fs afero.Fs, path string, write func(w io.Writer) error, opts ...FileOption) error {
	f, err := Create(fs, path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Discard()
	}()

	err = write(f)
	if err != nil {
		return err
	}

	return f.Close()
}
