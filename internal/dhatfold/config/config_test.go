package config_test

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/yandex/dhatfold/internal/dhatfold/config"
	"github.com/yandex/dhatfold/pkg/profile/dhat"
)

func TestDefault(t *testing.T) {
	conf := config.Default()
	require.NoError(t, conf.Validate())

	require.Equal(t, "total", conf.Metric)
	require.Equal(t, "bytes", conf.Unit)
	require.Equal(t, "folded", conf.Format)
	require.Equal(t, "Flame Graph", conf.FlameGraph.Title)
	require.Equal(t, 1200.0, conf.FlameGraph.Width)
	require.Equal(t, 0.0001, conf.FlameGraph.MinWeight)

	metric, unit, err := conf.Selection()
	require.NoError(t, err)
	require.Equal(t, dhat.MetricTotal, metric)
	require.Equal(t, dhat.UnitBytes, unit)
	require.Equal(t, "info", conf.LogLevel)
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/dhatfold.yaml", []byte(`
metric: max
unit: blocks
format: svg
log_level: debug
flamegraph:
  title: Peak heap
  width: 1600
  max_depth: 64
  inverted: true
  palette: hot
`), 0o644))

	conf, err := config.Load(fs, "/etc/dhatfold.yaml")
	require.NoError(t, err)

	metric, unit, err := conf.Selection()
	require.NoError(t, err)
	require.Equal(t, dhat.MetricMax, metric)
	require.Equal(t, dhat.UnitBlocks, unit)
	require.Equal(t, "svg", conf.Format)
	require.Equal(t, "Peak heap", conf.FlameGraph.Title)
	require.Equal(t, 1600.0, conf.FlameGraph.Width)
	require.Equal(t, 64, conf.FlameGraph.MaxDepth)
	require.True(t, conf.FlameGraph.Inverted)
	require.Equal(t, "hot", conf.FlameGraph.Palette)
	require.Equal(t, 0.0001, conf.FlameGraph.MinWeight)
}

func TestDecodeEmpty(t *testing.T) {
	conf, err := config.Decode(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, config.Default(), conf)
}

func TestDecodeInvalid(t *testing.T) {
	for _, test := range []struct {
		name   string
		raw    string
		errMsg string
	}{
		{name: "unknown key", raw: "metrik: total\n", errMsg: "field metrik not found"},
		{name: "unknown metric", raw: "metric: peak\n", errMsg: "metric"},
		{name: "unknown unit", raw: "unit: pages\n", errMsg: "unit"},
		{name: "unknown format", raw: "format: png\n", errMsg: "format"},
		{name: "bad log level", raw: "log_level: loud\n", errMsg: "log_level"},
		{name: "negative width", raw: "flamegraph:\n  width: -5\n", errMsg: "width"},
		{name: "min weight above one", raw: "flamegraph:\n  min_weight: 2\n", errMsg: "min_weight"},
		{name: "unknown palette", raw: "flamegraph:\n  palette: blue\n", errMsg: "palette"},
		{name: "not yaml", raw: "metric: [total\n", errMsg: "failed to parse config"},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := config.Decode(strings.NewReader(test.raw))
			require.Error(t, err)
			require.ErrorContains(t, err, test.errMsg)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := config.Load(afero.NewMemMapFs(), "/nope.yaml")
	require.ErrorContains(t, err, "failed to open config")
}
