package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/yandex/dhatfold/internal/dhatfold/cli"
)

const stdinPath = "-"

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// readInput loads the whole input, transparently decompressing zstd and gzip streams.
func readInput(app *cli.App, path string) ([]byte, error) {
	var src io.Reader
	if path == stdinPath || path == "" {
		src = app.Stdin()
		path = "<stdin>"
	} else {
		file, err := app.Fs().Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer file.Close()
		src = file
	}

	r, compression, err := decompress(bufio.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s input %s: %w", compression, path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input %s: %w", path, err)
	}

	app.Logger().Info(app.Context(), "Read input",
		zap.String("path", path),
		zap.String("compression", compression),
		zap.String("size", humanize.Bytes(uint64(len(data)))),
	)
	return data, nil
}

func decompress(r *bufio.Reader) (io.ReadCloser, string, error) {
	magic, _ := r.Peek(len(zstdMagic))

	switch {
	case bytes.HasPrefix(magic, zstdMagic):
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, "zstd", err
		}
		return decoder.IOReadCloser(), "zstd", nil

	case bytes.HasPrefix(magic, gzipMagic):
		decoder, err := gzip.NewReader(r)
		if err != nil {
			return nil, "gzip", err
		}
		return decoder, "gzip", nil

	default:
		return io.NopCloser(r), "none", nil
	}
}
