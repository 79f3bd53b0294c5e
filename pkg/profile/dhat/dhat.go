package dhat

import (
	"fmt"

	"lukechampine.com/uint128"
)

const (
	DefaultByteUnit   = "byte"
	DefaultBytesUnit  = "bytes"
	DefaultBlocksUnit = "blocks"
)

////////////////////////////////////////////////////////////////////////////////

// Document is a decoded DHAT heap profile.
// The layout follows the JSON format described in dhat/dh_main.c of Valgrind.
// Fields marked as lifetime-only are nil unless LifetimesRecorded is set.
type Document struct {
	Version int
	Mode    string
	// The word printed before a stack block, i.e. "<verb> at {".
	Verb string

	LifetimesRecorded bool
	AccessesRecorded  bool

	ByteUnit   string
	BytesUnit  string
	BlocksUnit string

	TimeUnit     string
	MegaTimeUnit string

	// Lifetime-only. Measured in TimeUnit.
	ShortLivedThreshold *uint64

	Command string
	PID     uint32

	// Lifetime-only.
	GlobalMaxTime *uint128.Uint128
	EndTime       uint128.Uint128

	ProgramPoints []ProgramPoint
	Frames        []string
}

// ProgramPoint holds the statistics of a single allocation site.
type ProgramPoint struct {
	TotalBytes  uint64
	TotalBlocks uint64

	// Lifetime-only.
	TotalLifetimes *uint128.Uint128

	// Lifetime-only.
	MaxBytes  *uint64
	MaxBlocks *uint64

	// Lifetime-only. Bytes and blocks live at the time of the global heap maximum.
	HeapMaxBytes  *uint64
	HeapMaxBlocks *uint64

	// Lifetime-only. Bytes and blocks still live at program exit.
	EndBytes  *uint64
	EndBlocks *uint64

	// Indices into Document.Frames, outermost frame first.
	Frames []uint64
}

////////////////////////////////////////////////////////////////////////////////

// Frame resolves a frame table index.
func (d *Document) Frame(index uint64) (string, error) {
	if index >= uint64(len(d.Frames)) {
		return "", fmt.Errorf("%w: frame index %d is out of range, frame table has %d entries",
			ErrCorruptRecord, index, len(d.Frames))
	}
	return d.Frames[index], nil
}

// UnitLabel returns the label the profiler uses for values measured in the given unit.
func (d *Document) UnitLabel(unit Unit) string {
	switch unit {
	case UnitBlocks:
		return d.BlocksUnit
	case UnitLifetimes:
		return d.TimeUnit
	default:
		return d.BytesUnit
	}
}

// TotalBytes sums allocated bytes over all program points.
func (d *Document) TotalBytes() uint128.Uint128 {
	sum := uint128.Zero
	for i := range d.ProgramPoints {
		sum = sum.AddWrap64(d.ProgramPoints[i].TotalBytes)
	}
	return sum
}

// TotalBlocks sums allocated blocks over all program points.
func (d *Document) TotalBlocks() uint128.Uint128 {
	sum := uint128.Zero
	for i := range d.ProgramPoints {
		sum = sum.AddWrap64(d.ProgramPoints[i].TotalBlocks)
	}
	return sum
}
