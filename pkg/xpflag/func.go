package xpflag

import (
	"github.com/spf13/pflag"
)

// Func is a flag whose value is produced by a parse callback.
type Func[T any] struct {
	raw    string
	parsed T
	parse  func(string) (T, error)
}

// Set implements pflag.Value.
func (o *Func[T]) Set(value string) error {
	parsed, err := o.parse(value)
	if err != nil {
		return err
	}
	o.raw = value
	o.parsed = parsed
	return nil
}

// String implements pflag.Value.
func (o *Func[T]) String() string {
	return o.raw
}

// Type implements pflag.Value.
func (o *Func[T]) Type() string {
	return "string"
}

func (o *Func[T]) Value() T {
	return o.parsed
}

func NewFunc[T any](defaultValue string, parse func(string) (T, error)) *Func[T] {
	f := &Func[T]{parse: parse}
	if defaultValue != "" {
		if err := f.Set(defaultValue); err != nil {
			panic(err)
		}
	}
	return f
}

var _ pflag.Value = (*Func[int])(nil)
