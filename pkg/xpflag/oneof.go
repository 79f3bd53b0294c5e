package xpflag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// OneOf is a string flag restricted to a fixed set of variants.
// Values are matched case-insensitively and stored in their canonical spelling.
type OneOf struct {
	variants []string
	value    string
}

func NewOneOf(defaultValue string, variants ...string) *OneOf {
	return &OneOf{variants: variants, value: defaultValue}
}

// Set implements pflag.Value.
func (o *OneOf) Set(value string) error {
	idx := slices.IndexFunc(o.variants, func(variant string) bool {
		return strings.EqualFold(variant, strings.TrimSpace(value))
	})
	if idx == -1 {
		return fmt.Errorf("unexpected value %q, expected one of [%s]", value, o.Variants())
	}
	o.value = o.variants[idx]
	return nil
}

// String implements pflag.Value.
func (o *OneOf) String() string {
	return o.value
}

// Type implements pflag.Value.
func (o *OneOf) Type() string {
	return "string"
}

func (o *OneOf) Variants() string {
	return strings.Join(o.variants, ", ")
}

// Complete plugs the variants into cobra shell completion:
//
//	format := xpflag.NewOneOf("svg", "svg", "json")
//	cmd.Flags().Var(format, "format", "output format, one of "+format.Variants())
//	_ = cmd.RegisterFlagCompletionFunc("format", format.Complete)
func (o *OneOf) Complete(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return o.variants, cobra.ShellCompDirectiveKeepOrder | cobra.ShellCompDirectiveNoFileComp
}

var _ pflag.Value = (*OneOf)(nil)
