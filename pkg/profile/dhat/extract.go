package dhat

import (
	"fmt"

	"lukechampine.com/uint128"
)

// Extractor computes the weight of a single program point.
type Extractor func(pp *ProgramPoint) (uint128.Uint128, error)

// NewExtractor validates the requested metric and unit against the capabilities
// of the profile and returns the matching extraction rule.
// The first failed check wins, in this order:
// unit support, metric support, metric and unit compatibility.
func NewExtractor(lifetimesRecorded bool, metric Metric, unit Unit) (Extractor, error) {
	if unit == UnitLifetimes && !lifetimesRecorded {
		return nil, fmt.Errorf("%w: lifetimes were not recorded in the profile", ErrUnsupportedUnit)
	}
	if metric.needsLifetimes() && !lifetimesRecorded {
		return nil, fmt.Errorf("%w: %s requires block lifetimes, which were not recorded in the profile",
			ErrUnsupportedMetric, metric)
	}
	if metric != MetricTotal && unit == UnitLifetimes {
		return nil, fmt.Errorf("%w: only total lifetimes are supported", ErrUnsupportedCombination)
	}

	switch metric {
	case MetricTotal:
		switch unit {
		case UnitBytes:
			return func(pp *ProgramPoint) (uint128.Uint128, error) {
				return uint128.From64(pp.TotalBytes), nil
			}, nil
		case UnitBlocks:
			return func(pp *ProgramPoint) (uint128.Uint128, error) {
				return uint128.From64(pp.TotalBlocks), nil
			}, nil
		case UnitLifetimes:
			return func(pp *ProgramPoint) (uint128.Uint128, error) {
				if pp.TotalLifetimes == nil {
					return uint128.Zero, missingField("tl")
				}
				return *pp.TotalLifetimes, nil
			}, nil
		}
	case MetricMax:
		return pickOptional(unit, "mb", "mbk", func(pp *ProgramPoint) (*uint64, *uint64) {
			return pp.MaxBytes, pp.MaxBlocks
		})
	case MetricEnd:
		return pickOptional(unit, "eb", "ebk", func(pp *ProgramPoint) (*uint64, *uint64) {
			return pp.EndBytes, pp.EndBlocks
		})
	case MetricHeapMax:
		return pickOptional(unit, "gb", "gbk", func(pp *ProgramPoint) (*uint64, *uint64) {
			return pp.HeapMaxBytes, pp.HeapMaxBlocks
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMetric, metric)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedUnit, unit)
}

// Extractor is a shorthand for NewExtractor using the capabilities of the document.
func (d *Document) Extractor(metric Metric, unit Unit) (Extractor, error) {
	return NewExtractor(d.LifetimesRecorded, metric, unit)
}

func pickOptional(
	unit Unit,
	bytesField, blocksField string,
	fields func(pp *ProgramPoint) (bytes *uint64, blocks *uint64),
) (Extractor, error) {
	var name string
	var pick func(bytes, blocks *uint64) *uint64

	switch unit {
	case UnitBytes:
		name = bytesField
		pick = func(bytes, _ *uint64) *uint64 { return bytes }
	case UnitBlocks:
		name = blocksField
		pick = func(_, blocks *uint64) *uint64 { return blocks }
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedUnit, unit)
	}

	return func(pp *ProgramPoint) (uint128.Uint128, error) {
		value := pick(fields(pp))
		if value == nil {
			return uint128.Zero, missingField(name)
		}
		return uint128.From64(*value), nil
	}, nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: field %q is missing although block lifetimes were recorded", ErrCorruptRecord, name)
}
