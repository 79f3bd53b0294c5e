package convert

import (
	"fmt"
	"math"
	"slices"

	"github.com/google/pprof/profile"
	"lukechampine.com/uint128"

	"github.com/yandex/dhatfold/pkg/profile/flamegraph/collapsed"
)

var maxPProfValue = uint128.From64(math.MaxInt64)

// PProfToCollapsed folds every sample of the default sample type.
// Inlined functions become separate frames marked with " (inlined)".
func PProfToCollapsed(prof *profile.Profile) (*collapsed.Profile, error) {
	sampleTypeIdx := 0
	for i, value := range prof.SampleType {
		if value.Type == prof.DefaultSampleType {
			sampleTypeIdx = i
			break
		}
	}

	res := &collapsed.Profile{
		Samples: make([]collapsed.Sample, len(prof.Sample)),
	}
	for i, src := range prof.Sample {
		if sampleTypeIdx >= len(src.Value) {
			return nil, fmt.Errorf("sample %d has no value for sample type %d", i, sampleTypeIdx)
		}
		value := src.Value[sampleTypeIdx]
		if value < 0 {
			return nil, fmt.Errorf("sample %d has negative value %d", i, value)
		}

		sample := &res.Samples[i]
		sample.Value = uint128.From64(uint64(value))
		sample.Stack = make([]string, 0, len(src.Location))
		for _, loc := range src.Location {
			// The last line is the caller the preceding ones were inlined into.
			for j, line := range loc.Line {
				name := ""
				if line.Function != nil {
					name = line.Function.Name
					if name == "" {
						name = line.Function.SystemName
					}
				}
				if j != len(loc.Line)-1 {
					name += " (inlined)"
				}
				sample.Stack = append(sample.Stack, name)
			}

			if len(loc.Line) == 0 {
				name := fmt.Sprintf("0x%x", loc.Address)
				if loc.Mapping != nil {
					name = fmt.Sprintf("0x%x @%s", loc.Address, loc.Mapping.File)
				}
				sample.Stack = append(sample.Stack, name)
			}
		}
		slices.Reverse(sample.Stack)
	}
	return res, nil
}

// CollapsedToPProf builds a pprof profile with a single sample type.
// Frames with equal names share one function and one location.
func CollapsedToPProf(prof *collapsed.Profile, sampleType, unit string) (*profile.Profile, error) {
	res := &profile.Profile{
		SampleType: []*profile.ValueType{{
			Type: sampleType,
			Unit: unit,
		}},
		DefaultSampleType: sampleType,
		Sample:            make([]*profile.Sample, len(prof.Samples)),
	}

	locations := make(map[string]*profile.Location)
	for i := range prof.Samples {
		value := prof.Samples[i].Value
		if value.Cmp(maxPProfValue) > 0 {
			return nil, fmt.Errorf("sample %d: value %s does not fit into pprof int64", i, value)
		}

		res.Sample[i] = &profile.Sample{
			Value:    []int64{int64(value.Lo)},
			Location: make([]*profile.Location, 0, len(prof.Samples[i].Stack)),
		}
		for _, function := range prof.Samples[i].Stack {
			loc, found := locations[function]
			if !found {
				funcPtr := &profile.Function{
					ID:   1 + uint64(len(res.Function)),
					Name: function,
				}
				loc = &profile.Location{
					ID: 1 + uint64(len(res.Location)),
					Line: []profile.Line{{
						Function: funcPtr,
					}},
				}
				locations[function] = loc
				res.Function = append(res.Function, funcPtr)
				res.Location = append(res.Location, loc)
			}
			res.Sample[i].Location = append(res.Sample[i].Location, loc)
		}
		slices.Reverse(res.Sample[i].Location)
	}

	return res, nil
}
