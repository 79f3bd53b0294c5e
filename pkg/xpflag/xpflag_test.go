package xpflag_test

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/yandex/dhatfold/pkg/xpflag"
)

type color int

func (c color) String() string {
	return []string{"red", "green"}[c]
}

func parseColor(s string) (color, error) {
	switch s {
	case "red":
		return 0, nil
	case "green":
		return 1, nil
	}
	return 0, fmt.Errorf("unknown color %q", s)
}

func TestOneOf(t *testing.T) {
	flag := xpflag.NewOneOf("svg", "svg", "json")
	require.Equal(t, "svg", flag.String())

	require.NoError(t, flag.Set("json"))
	require.Equal(t, "json", flag.String())

	require.NoError(t, flag.Set("SVG"))
	require.Equal(t, "svg", flag.String())

	require.ErrorContains(t, flag.Set("png"), "expected one of [svg, json]")
	require.Equal(t, "svg", flag.String())
}

func TestEnum(t *testing.T) {
	cmd := &cobra.Command{Use: "paint", RunE: func(*cobra.Command, []string) error { return nil }}
	flag := xpflag.NewEnum[color](0, []string{"red", "green"}, parseColor)
	flag.Register(cmd, "color", "Brush color")

	require.Contains(t, cmd.Flags().Lookup("color").Usage, "one of [red, green]")
	require.NoError(t, cmd.Flags().Parse([]string{"--color", "green"}))
	require.Equal(t, color(1), flag.Value())
	require.True(t, cmd.Flags().Changed("color"))

	require.Error(t, cmd.Flags().Parse([]string{"--color", "blue"}))
	require.Equal(t, color(1), flag.Value())

	variants, _ := flag.Complete(cmd, nil, "")
	require.Equal(t, []string{"red", "green"}, variants)
}

func TestFunc(t *testing.T) {
	flag := xpflag.NewFunc("10", strconv.Atoi)
	require.Equal(t, 10, flag.Value())

	require.NoError(t, flag.Set("42"))
	require.Equal(t, 42, flag.Value())
	require.Equal(t, "42", flag.String())

	require.Error(t, flag.Set("many"))
	require.Equal(t, 42, flag.Value())
}
