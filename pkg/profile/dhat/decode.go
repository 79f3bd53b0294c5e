package dhat

import (
	"fmt"
	"io"
	"math/big"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	jsoniter "github.com/json-iterator/go"
	"lukechampine.com/uint128"
)

////////////////////////////////////////////////////////////////////////////////

// Keys must match the documented names exactly.
var jsonAPI = jsoniter.Config{CaseSensitive: true}.Froze()

////////////////////////////////////////////////////////////////////////////////

// Uint128 is a JSON number that must fit into 128 unsigned bits.
type Uint128 struct {
	uint128.Uint128
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *Uint128) UnmarshalJSON(data []byte) error {
	value, ok := new(big.Int).SetString(string(data), 10)
	if !ok {
		return fmt.Errorf("cannot parse %q as an unsigned integer", data)
	}
	if value.Sign() < 0 || value.BitLen() > 128 {
		return fmt.Errorf("value %s does not fit into 128 unsigned bits", value)
	}
	u.Uint128 = uint128.FromBig(value)
	return nil
}

////////////////////////////////////////////////////////////////////////////////

// Every field is a pointer so that missing and zero values can be told apart.
type rawDocument struct {
	Version           *uint32           `json:"dhatFileVersion"`
	Mode              *string           `json:"mode"`
	Verb              *string           `json:"verb"`
	LifetimesRecorded *bool             `json:"bklt"`
	AccessesRecorded  *bool             `json:"bkacc"`
	ByteUnit          *string           `json:"bu"`
	BytesUnit         *string           `json:"bsu"`
	BlocksUnit        *string           `json:"bksu"`
	TimeUnit          *string           `json:"tu"`
	MegaTimeUnit      *string           `json:"Mtu"`
	ShortLivedThresh  *uint64           `json:"tuth"`
	Command           *string           `json:"cmd"`
	PID               *uint32           `json:"pid"`
	GlobalMaxTime     *Uint128          `json:"tg"`
	EndTime           *Uint128          `json:"te"`
	ProgramPoints     []rawProgramPoint `json:"pps"`
	Frames            []string          `json:"ftbl"`
}

type rawProgramPoint struct {
	TotalBytes     *uint64  `json:"tb"`
	TotalBlocks    *uint64  `json:"tbk"`
	TotalLifetimes *Uint128 `json:"tl"`
	MaxBytes       *uint64  `json:"mb"`
	MaxBlocks      *uint64  `json:"mbk"`
	HeapMaxBytes   *uint64  `json:"gb"`
	HeapMaxBlocks  *uint64  `json:"gbk"`
	EndBytes       *uint64  `json:"eb"`
	EndBlocks      *uint64  `json:"ebk"`
	Frames         []uint64 `json:"fs"`
}

func (d *rawDocument) validate() error {
	lifetimes := d.LifetimesRecorded != nil && *d.LifetimesRecorded
	lifetimeOnly := validation.When(!lifetimes, validation.Nil)

	err := validation.ValidateStruct(d,
		validation.Field(&d.Version, validation.NotNil),
		validation.Field(&d.Mode, validation.NotNil),
		validation.Field(&d.Verb, validation.NotNil),
		validation.Field(&d.LifetimesRecorded, validation.NotNil),
		validation.Field(&d.AccessesRecorded, validation.NotNil),
		validation.Field(&d.TimeUnit, validation.NotNil),
		validation.Field(&d.MegaTimeUnit, validation.NotNil),
		validation.Field(&d.ShortLivedThresh, lifetimeOnly),
		validation.Field(&d.Command, validation.NotNil),
		validation.Field(&d.PID, validation.NotNil),
		validation.Field(&d.GlobalMaxTime, lifetimeOnly),
		validation.Field(&d.EndTime, validation.NotNil),
		validation.Field(&d.ProgramPoints, validation.NotNil),
		validation.Field(&d.Frames, validation.NotNil),
	)
	if err != nil {
		return err
	}

	for i := range d.ProgramPoints {
		err := d.ProgramPoints[i].validate(lifetimeOnly)
		if err != nil {
			return fmt.Errorf("program point %d: %w", i, err)
		}
	}

	return nil
}

func (p *rawProgramPoint) validate(lifetimeOnly validation.Rule) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.TotalBytes, validation.NotNil),
		validation.Field(&p.TotalBlocks, validation.NotNil),
		validation.Field(&p.TotalLifetimes, lifetimeOnly),
		validation.Field(&p.MaxBytes, lifetimeOnly),
		validation.Field(&p.MaxBlocks, lifetimeOnly),
		validation.Field(&p.HeapMaxBytes, lifetimeOnly),
		validation.Field(&p.HeapMaxBlocks, lifetimeOnly),
		validation.Field(&p.EndBytes, lifetimeOnly),
		validation.Field(&p.EndBlocks, lifetimeOnly),
		validation.Field(&p.Frames, validation.NotNil),
	)
}

////////////////////////////////////////////////////////////////////////////////

// Decode reads a whole DHAT JSON document.
func Decode(r io.Reader) (*Document, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read DHAT document: %w", err)
	}
	return Unmarshal(buf)
}

// Unmarshal parses a DHAT JSON document.
// Unknown fields are ignored, anything after the top-level object is not.
func Unmarshal(buf []byte) (*Document, error) {
	var raw rawDocument
	err := jsonAPI.Unmarshal(buf, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	err = raw.validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	return raw.build(), nil
}

func (d *rawDocument) build() *Document {
	res := &Document{
		Version:             int(*d.Version),
		Mode:                *d.Mode,
		Verb:                *d.Verb,
		LifetimesRecorded:   *d.LifetimesRecorded,
		AccessesRecorded:    *d.AccessesRecorded,
		ByteUnit:            valueOr(d.ByteUnit, DefaultByteUnit),
		BytesUnit:           valueOr(d.BytesUnit, DefaultBytesUnit),
		BlocksUnit:          valueOr(d.BlocksUnit, DefaultBlocksUnit),
		TimeUnit:            *d.TimeUnit,
		MegaTimeUnit:        *d.MegaTimeUnit,
		ShortLivedThreshold: d.ShortLivedThresh,
		Command:             *d.Command,
		PID:                 *d.PID,
		GlobalMaxTime:       unwrap128(d.GlobalMaxTime),
		EndTime:             d.EndTime.Uint128,
		ProgramPoints:       make([]ProgramPoint, len(d.ProgramPoints)),
		Frames:              d.Frames,
	}

	for i := range d.ProgramPoints {
		raw := &d.ProgramPoints[i]
		res.ProgramPoints[i] = ProgramPoint{
			TotalBytes:     *raw.TotalBytes,
			TotalBlocks:    *raw.TotalBlocks,
			TotalLifetimes: unwrap128(raw.TotalLifetimes),
			MaxBytes:       raw.MaxBytes,
			MaxBlocks:      raw.MaxBlocks,
			HeapMaxBytes:   raw.HeapMaxBytes,
			HeapMaxBlocks:  raw.HeapMaxBlocks,
			EndBytes:       raw.EndBytes,
			EndBlocks:      raw.EndBlocks,
			Frames:         raw.Frames,
		}
	}

	return res
}

func valueOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}

func unwrap128(value *Uint128) *uint128.Uint128 {
	if value == nil {
		return nil
	}
	res := value.Uint128
	return &res
}
