package convert_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/yandex/dhatfold/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/dhatfold/pkg/profile/flamegraph/convert"
)

func TestPProfConvert(t *testing.T) {
	for i, test := range []struct {
		raw string
	}{{
		raw: `main;alloc;__rust_alloc 42
`,
	}, {
		raw: `main;alloc;__rust_alloc 42
main;Vec::push;realloc 1
aaaaaa ; aaaaaa 123
`,
	}} {
		t.Run(fmt.Sprintf("roundtrip/%d", i), func(t *testing.T) {
			folded, err := collapsed.Unmarshal([]byte(test.raw))
			require.NoError(t, err)
			pprof, err := convert.CollapsedToPProf(folded, "alloc_space", "bytes")
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, pprof.Write(&buf))
			parsed, err := profile.Parse(&buf)
			require.NoError(t, err)
			require.Equal(t, "alloc_space", parsed.SampleType[0].Type)
			require.Equal(t, "bytes", parsed.SampleType[0].Unit)

			folded2, err := convert.PProfToCollapsed(parsed)
			require.NoError(t, err)
			raw, err := collapsed.Marshal(folded2)
			require.NoError(t, err)

			require.Equal(t, test.raw, string(raw))
		})
	}
}

func TestCollapsedToPProfSharesLocations(t *testing.T) {
	folded, err := collapsed.Unmarshal([]byte("main;alloc 1\nmain;helper;alloc 2\n"))
	require.NoError(t, err)

	pprof, err := convert.CollapsedToPProf(folded, "alloc_space", "bytes")
	require.NoError(t, err)
	require.Len(t, pprof.Function, 3)
	require.Len(t, pprof.Location, 3)
	require.Equal(t, "alloc", pprof.Sample[0].Location[0].Line[0].Function.Name)
}

func TestCollapsedToPProfOverflow(t *testing.T) {
	_, err := convert.CollapsedToPProf(&collapsed.Profile{
		Samples: []collapsed.Sample{{Stack: []string{"main"}, Value: uint128.New(0, 1)}},
	}, "lifetimes", "µs")
	require.ErrorContains(t, err, "does not fit")
}

func TestPProfToCollapsedNegative(t *testing.T) {
	_, err := convert.PProfToCollapsed(&profile.Profile{
		SampleType: []*profile.ValueType{{Type: "delta", Unit: "bytes"}},
		Sample:     []*profile.Sample{{Value: []int64{-5}}},
	})
	require.ErrorContains(t, err, "negative")
}

func TestPProfToCollapsedInlined(t *testing.T) {
	mainFn := &profile.Function{ID: 1, Name: "main"}
	allocFn := &profile.Function{ID: 2, Name: "alloc"}
	growFn := &profile.Function{ID: 3, Name: "grow"}

	folded, err := convert.PProfToCollapsed(&profile.Profile{
		SampleType: []*profile.ValueType{{Type: "alloc_space", Unit: "bytes"}},
		Sample: []*profile.Sample{{
			Value: []int64{7},
			Location: []*profile.Location{
				{ID: 2, Line: []profile.Line{{Function: growFn}, {Function: allocFn}}},
				{ID: 1, Line: []profile.Line{{Function: mainFn}}},
			},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"main;alloc;grow (inlined) 7"}, collapsed.Lines(folded))
}
