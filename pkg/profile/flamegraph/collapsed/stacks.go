package collapsed

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"lukechampine.com/uint128"
)

// Sample is a single folded stack, outermost frame first.
type Sample struct {
	Stack []string
	Value uint128.Uint128
}

type Profile struct {
	Samples []Sample
}

////////////////////////////////////////////////////////////////////////////////

// Decode parses folded stacks: "frame1;frame2;...;frameN COUNT" per line.
// A line holding only a count is a sample with an empty stack.
func Decode(r io.Reader) (*Profile, error) {
	res := &Profile{
		Samples: make([]Sample, 0),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		stack, rawCount := []string{}, line
		if idx := strings.LastIndexByte(line, ' '); idx != -1 {
			stack, rawCount = strings.Split(line[:idx], ";"), line[idx+1:]
		}

		count, err := parseCount(rawCount)
		if err != nil {
			return nil, fmt.Errorf("collapsed: malformed input: %w", err)
		}

		res.Samples = append(res.Samples, Sample{
			Stack: stack,
			Value: count,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("collapsed: failed to read input: %w", err)
	}

	return res, nil
}

func parseCount(raw string) (uint128.Uint128, error) {
	value, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return uint128.Zero, fmt.Errorf("invalid count %q", raw)
	}
	if value.Sign() < 0 || value.BitLen() > 128 {
		return uint128.Zero, errors.New("count does not fit into 128 unsigned bits")
	}
	return uint128.FromBig(value), nil
}

// Encode writes one line per sample: frames joined with ';', a space and the decimal count.
// Frame names are written verbatim, so names containing ';' or ' ' produce ambiguous lines.
func Encode(profile *Profile, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i := range profile.Samples {
		_, err := bw.WriteString(formatLine(&profile.Samples[i]))
		if err != nil {
			return err
		}
		err = bw.WriteByte('\n')
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Lines returns the folded representation of each sample without line terminators.
func Lines(profile *Profile) []string {
	res := make([]string, len(profile.Samples))
	for i := range profile.Samples {
		res[i] = formatLine(&profile.Samples[i])
	}
	return res
}

func formatLine(sample *Sample) string {
	if len(sample.Stack) == 0 {
		return sample.Value.String()
	}
	return strings.Join(sample.Stack, ";") + " " + sample.Value.String()
}

func Unmarshal(buf []byte) (*Profile, error) {
	return Decode(bytes.NewBuffer(buf))
}

func Marshal(profile *Profile) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := Encode(profile, buf)
	return buf.Bytes(), err
}
