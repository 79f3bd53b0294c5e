package convert

import (
	"fmt"

	"github.com/yandex/dhatfold/pkg/profile/dhat"
	"github.com/yandex/dhatfold/pkg/profile/flamegraph/collapsed"
)

// DHATToCollapsed builds one folded sample per program point, in document order.
// Identical stacks are not merged.
func DHATToCollapsed(doc *dhat.Document, metric dhat.Metric, unit dhat.Unit) (*collapsed.Profile, error) {
	extract, err := doc.Extractor(metric, unit)
	if err != nil {
		return nil, err
	}

	res := &collapsed.Profile{
		Samples: make([]collapsed.Sample, len(doc.ProgramPoints)),
	}
	for i := range doc.ProgramPoints {
		pp := &doc.ProgramPoints[i]
		sample := &res.Samples[i]

		sample.Stack = make([]string, 0, len(pp.Frames))
		for _, index := range pp.Frames {
			name, err := doc.Frame(index)
			if err != nil {
				return nil, fmt.Errorf("program point %d: %w", i, err)
			}
			sample.Stack = append(sample.Stack, name)
		}

		sample.Value, err = extract(pp)
		if err != nil {
			return nil, fmt.Errorf("program point %d: %w", i, err)
		}
	}

	return res, nil
}
