package xpflag

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Enum is a OneOf flag that keeps the parsed value.
type Enum[T fmt.Stringer] struct {
	OneOf
	parsed T
	parse  func(string) (T, error)
}

func NewEnum[T fmt.Stringer](defaultValue T, variants []string, parse func(string) (T, error)) *Enum[T] {
	return &Enum[T]{
		OneOf:  OneOf{variants: variants, value: defaultValue.String()},
		parsed: defaultValue,
		parse:  parse,
	}
}

// Set implements pflag.Value.
func (e *Enum[T]) Set(value string) error {
	if err := e.OneOf.Set(value); err != nil {
		return err
	}
	parsed, err := e.parse(e.OneOf.String())
	if err != nil {
		return err
	}
	e.parsed = parsed
	return nil
}

func (e *Enum[T]) Value() T {
	return e.parsed
}

// Register adds the flag to cmd together with its shell completion.
func (e *Enum[T]) Register(cmd *cobra.Command, name, usage string) {
	cmd.Flags().Var(e, name, fmt.Sprintf("%s, one of [%s]", usage, e.Variants()))
	_ = cmd.RegisterFlagCompletionFunc(name, e.Complete)
}

var _ pflag.Value = (*Enum[fmt.Stringer])(nil)
