package dhat

import "errors"

var (
	// ErrMalformedInput is returned when the document does not match the DHAT schema.
	ErrMalformedInput = errors.New("dhat: malformed input")

	// ErrUnsupportedUnit is returned when the requested unit was not recorded by the profiler.
	ErrUnsupportedUnit = errors.New("dhat: unsupported unit")

	// ErrUnsupportedMetric is returned when the requested metric was not recorded by the profiler.
	ErrUnsupportedMetric = errors.New("dhat: unsupported metric")

	// ErrUnsupportedCombination is returned for metric and unit pairs that never make sense.
	ErrUnsupportedCombination = errors.New("dhat: unsupported metric and unit combination")

	// ErrCorruptRecord is returned when a decoded document is internally inconsistent.
	ErrCorruptRecord = errors.New("dhat: corrupt record")
)
