package cmd_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	pprof "github.com/google/pprof/profile"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/yandex/dhatfold/internal/dhatfold/cli"
	"github.com/yandex/dhatfold/internal/dhatfold/cmd"
	"github.com/yandex/dhatfold/pkg/profile/dhat"
	"github.com/yandex/dhatfold/pkg/profile/flamegraph/render/format"
)

const heapProfile = `{
  "dhatFileVersion": 2, "mode": "rust-heap", "verb": "Allocated",
  "bklt": true, "bkacc": false, "tu": "µs", "Mtu": "s", "tuth": 10,
  "cmd": "./app", "pid": 42, "tg": 5, "te": 10,
  "pps": [
    {"tb": 100, "tbk": 5, "tl": 400, "mb": 80, "mbk": 4, "gb": 60, "gbk": 3, "eb": 10, "ebk": 1, "fs": [0, 1, 2]},
    {"tb": 30, "tbk": 3, "tl": 90, "mb": 20, "mbk": 2, "gb": 0, "gbk": 0, "eb": 0, "ebk": 0, "fs": [0, 2]}
  ],
  "ftbl": ["main", "helper", "alloc"]
}`

const snapshotProfile = `{
  "dhatFileVersion": 2, "mode": "heap", "verb": "Allocated",
  "bklt": false, "bkacc": false, "tu": "instrs", "Mtu": "Minstr",
  "cmd": "./app", "pid": 7, "te": 10,
  "pps": [{"tb": 100, "tbk": 5, "fs": [0]}],
  "ftbl": ["main"]
}`

type harness struct {
	fs     afero.Fs
	stdin  *bytes.Buffer
	stdout *bytes.Buffer
	logs   *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		fs:     afero.NewMemMapFs(),
		stdin:  &bytes.Buffer{},
		stdout: &bytes.Buffer{},
		logs:   &bytes.Buffer{},
	}
	require.NoError(t, afero.WriteFile(h.fs, "/in/dhat-heap.json", []byte(heapProfile), 0o644))
	require.NoError(t, afero.WriteFile(h.fs, "/in/snapshot.json", []byte(snapshotProfile), 0o644))
	return h
}

func (h *harness) run(args ...string) error {
	root := cmd.NewRootCommand(&cli.Config{
		Fs:        h.fs,
		Stdin:     h.stdin,
		Stdout:    h.stdout,
		LogOutput: h.logs,
	})
	root.SetArgs(args)
	root.SetErr(h.logs)
	return root.Execute()
}

func (h *harness) read(t *testing.T, path string) string {
	data, err := afero.ReadFile(h.fs, path)
	require.NoError(t, err)
	return string(data)
}

////////////////////////////////////////////////////////////////////////////////

func TestConvertToStdout(t *testing.T) {
	for _, test := range []struct {
		args     []string
		expected string
	}{{
		args:     []string{"convert", "/in/dhat-heap.json"},
		expected: "main;helper;alloc 100\nmain;alloc 30\n",
	}, {
		args:     []string{"convert", "/in/dhat-heap.json", "-", "--metric", "max"},
		expected: "main;helper;alloc 80\nmain;alloc 20\n",
	}, {
		args:     []string{"convert", "/in/dhat-heap.json", "--metric", "heap-max", "--unit", "blocks"},
		expected: "main;helper;alloc 3\nmain;alloc 0\n",
	}, {
		args:     []string{"convert", "/in/dhat-heap.json", "--unit", "lifetimes"},
		expected: "main;helper;alloc 400\nmain;alloc 90\n",
	}, {
		args:     []string{"convert", "/in/snapshot.json"},
		expected: "main 100\n",
	}} {
		t.Run(strings.Join(test.args, " "), func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, h.run(test.args...))
			require.Equal(t, test.expected, h.stdout.String())
		})
	}
}

func TestConvertToFile(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.fs.MkdirAll("/out", 0o755))

	require.NoError(t, h.run("convert", "--metric", "end", "/in/dhat-heap.json", "/out/dhat.folded"))
	require.Equal(t, "main;helper;alloc 10\nmain;alloc 0\n", h.read(t, "/out/dhat.folded"))
	require.Empty(t, h.stdout.String())
	require.Contains(t, h.logs.String(), "Writing profile")
	require.Contains(t, h.logs.String(), "Parsed DHAT profile")
}

func TestConvertCompressedStdin(t *testing.T) {
	for name, compress := range map[string]func(t *testing.T, raw []byte) []byte{
		"gzip": func(t *testing.T, raw []byte) []byte {
			var buf bytes.Buffer
			w := gzip.NewWriter(&buf)
			_, err := w.Write(raw)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			return buf.Bytes()
		},
		"zstd": func(t *testing.T, raw []byte) []byte {
			encoder, err := zstd.NewWriter(nil)
			require.NoError(t, err)
			defer encoder.Close()
			return encoder.EncodeAll(raw, nil)
		},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.stdin.Write(compress(t, []byte(heapProfile)))

			require.NoError(t, h.run("convert", "-"))
			require.Equal(t, "main;helper;alloc 100\nmain;alloc 30\n", h.stdout.String())
			require.Contains(t, h.logs.String(), name)
		})
	}
}

func TestConvertErrors(t *testing.T) {
	for _, test := range []struct {
		name   string
		args   []string
		target error
		errMsg string
	}{{
		name:   "lifetimes not recorded",
		args:   []string{"convert", "/in/snapshot.json", "--unit", "lifetimes"},
		target: dhat.ErrUnsupportedUnit,
		errMsg: "lifetimes were not recorded in the profile",
	}, {
		name:   "metric needs lifetimes",
		args:   []string{"convert", "/in/snapshot.json", "--metric", "heap-max"},
		target: dhat.ErrUnsupportedMetric,
		errMsg: "heap-max",
	}, {
		name:   "lifetime snapshot",
		args:   []string{"convert", "/in/dhat-heap.json", "--metric", "end", "--unit", "lifetimes"},
		target: dhat.ErrUnsupportedCombination,
		errMsg: "only total lifetimes are supported",
	}, {
		name:   "malformed",
		args:   []string{"convert", "/in/garbage.json"},
		target: dhat.ErrMalformedInput,
	}, {
		name:   "unknown metric",
		args:   []string{"convert", "/in/dhat-heap.json", "--metric", "peak"},
		errMsg: "expected one of [total, max, end, heap-max]",
	}, {
		name:   "missing input",
		args:   []string{"convert", "/in/nope.json"},
		errMsg: "failed to open input",
	}, {
		name:   "serve with output",
		args:   []string{"convert", "/in/dhat-heap.json", "out.folded", "--serve", "localhost:0"},
		errMsg: "--serve cannot be combined",
	}, {
		name:   "bad width",
		args:   []string{"convert", "/in/dhat-heap.json", "--width", "-1"},
		errMsg: "width",
	}} {
		t.Run(test.name, func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, afero.WriteFile(h.fs, "/in/garbage.json", []byte(`{"dhatFileVersion": "two"}`), 0o644))

			err := h.run(test.args...)
			require.Error(t, err)
			if test.target != nil {
				require.ErrorIs(t, err, test.target)
			}
			if test.errMsg != "" {
				require.ErrorContains(t, err, test.errMsg)
			}
			require.Empty(t, h.stdout.String())
		})
	}
}

func TestConvertWithConfig(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, afero.WriteFile(h.fs, "/etc/dhatfold.yaml", []byte(`
metric: max
unit: blocks
log_level: warn
`), 0o644))

	require.NoError(t, h.run("convert", "--config", "/etc/dhatfold.yaml", "/in/dhat-heap.json"))
	require.Equal(t, "main;helper;alloc 4\nmain;alloc 2\n", h.stdout.String())
	require.NotContains(t, h.logs.String(), "Parsed DHAT profile")

	h.stdout.Reset()
	require.NoError(t, h.run("convert", "-c", "/etc/dhatfold.yaml", "--metric", "total", "/in/dhat-heap.json"))
	require.Equal(t, "main;helper;alloc 5\nmain;alloc 3\n", h.stdout.String())
}

func TestConvertFlameGraph(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("convert", "--format", "svg", "--title", "Heap", "/in/dhat-heap.json"))
	svg := h.stdout.String()
	require.Contains(t, svg, "<svg")
	require.Contains(t, svg, ">Heap</text>")
	require.Contains(t, svg, "total bytes of ./app (pid 42)")
	require.Contains(t, svg, "<title>alloc (100 bytes, 76.92%)</title>")
}

func TestConvertFlameGraphJSON(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("convert", "--format", "json", "--unit", "blocks", "/in/dhat-heap.json"))

	var data format.ProfileData
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &data))
	require.Equal(t, "Allocation frame", data.Strings[data.Meta.FrameType])
	require.Equal(t, "blocks", data.Strings[data.Meta.EventType])
	require.Equal(t, "all", data.Strings[data.Nodes[0][0].TextID])
}

func TestConvertPProf(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("convert", "--format", "pprof", "--unit", "blocks", "/in/dhat-heap.json"))
	prof, err := pprof.ParseData(h.stdout.Bytes())
	require.NoError(t, err)
	require.Equal(t, "total_blocks", prof.SampleType[0].Type)
	require.Equal(t, "blocks", prof.SampleType[0].Unit)
	require.Len(t, prof.Sample, 2)
	require.Equal(t, []int64{5}, prof.Sample[0].Value)
}

////////////////////////////////////////////////////////////////////////////////

func TestRender(t *testing.T) {
	h := newHarness(t)
	h.stdin.WriteString("main;alloc 3\nmain;grow 1\n")

	require.NoError(t, h.run("render", "-", "--format", "json", "--sample-unit", "bytes"))
	require.Contains(t, h.stdout.String(), `"stringTable"`)
	require.Contains(t, h.stdout.String(), `"bytes"`)
}

func TestRenderPProfToFolded(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("convert", "--format", "pprof", "/in/dhat-heap.json", "/in/heap.pb.gz"))

	require.NoError(t, h.run("render", "--input-format", "pprof", "--format", "folded", "/in/heap.pb.gz"))
	require.Equal(t, "main;helper;alloc 100\nmain;alloc 30\n", h.stdout.String())

	h.stdout.Reset()
	require.NoError(t, h.run("render", "--input-format", "pprof", "/in/heap.pb.gz", "/in/heap.svg"))
	require.Contains(t, h.read(t, "/in/heap.svg"), "<title>all (130 bytes, 100.00%)</title>")
}

func TestInspect(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("inspect", "/in/dhat-heap.json"))
	out := h.stdout.String()
	require.Contains(t, out, "Command:")
	require.Contains(t, out, "./app")
	require.Contains(t, out, "Block lifetimes:")
	require.Contains(t, out, "not recorded")
	require.Contains(t, out, "130 bytes (130 B) in 8 blocks")
	require.Contains(t, out, "Heap peak time:")
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("version"))
	require.True(t, strings.HasPrefix(h.stdout.String(), "dhatfold "))
}
