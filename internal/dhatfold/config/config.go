package config

import (
	"errors"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/afero"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/yandex/dhatfold/pkg/profile/dhat"
	"github.com/yandex/dhatfold/pkg/profile/flamegraph/render"
)

////////////////////////////////////////////////////////////////////////////////

type Format string

const (
	FormatFolded Format = "folded"
	FormatSVG    Format = "svg"
	FormatJSON   Format = "json"
	FormatPProf  Format = "pprof"
)

func Formats() []string {
	return []string{string(FormatFolded), string(FormatSVG), string(FormatJSON), string(FormatPProf)}
}

func Palettes() []string {
	return []string{string(render.PaletteHot), string(render.PaletteMem)}
}

////////////////////////////////////////////////////////////////////////////////

type FlameGraphConfig struct {
	Title     string  `yaml:"title" json:"title"`
	Subtitle  string  `yaml:"subtitle" json:"subtitle"`
	Width     float64 `yaml:"width" json:"width"`
	FontSize  float64 `yaml:"font_size" json:"font_size"`
	MinWeight float64 `yaml:"min_weight" json:"min_weight"`
	MaxDepth  int     `yaml:"max_depth" json:"max_depth"`
	Inverted  bool    `yaml:"inverted" json:"inverted"`
	Palette   string  `yaml:"palette" json:"palette"`
}

func (c *FlameGraphConfig) fillDefault() {
	if c.Title == "" {
		c.Title = "Flame Graph"
	}
	if c.Width == 0 {
		c.Width = 1200
	}
	if c.FontSize == 0 {
		c.FontSize = 12
	}
	if c.MinWeight == 0 {
		c.MinWeight = 0.0001
	}
	if c.Palette == "" {
		c.Palette = string(render.PaletteMem)
	}
}

func (c FlameGraphConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Width, validation.Min(16.0)),
		validation.Field(&c.FontSize, validation.Min(1.0), validation.Max(72.0)),
		validation.Field(&c.MinWeight, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxDepth, validation.Min(0)),
		validation.Field(&c.Palette, validation.In(anySlice(Palettes())...)),
	)
}

////////////////////////////////////////////////////////////////////////////////

type Config struct {
	Metric     string           `yaml:"metric" json:"metric"`
	Unit       string           `yaml:"unit" json:"unit"`
	Format     string           `yaml:"format" json:"format"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
	FlameGraph FlameGraphConfig `yaml:"flamegraph" json:"flamegraph"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.fillDefault()
	return c
}

func (c *Config) fillDefault() {
	if c.Metric == "" {
		c.Metric = dhat.MetricTotal.String()
	}
	if c.Unit == "" {
		c.Unit = dhat.UnitBytes.String()
	}
	if c.Format == "" {
		c.Format = string(FormatFolded)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.FlameGraph.fillDefault()
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Metric, validation.Required, validation.In(anySlice(dhat.Metrics())...)),
		validation.Field(&c.Unit, validation.Required, validation.In(anySlice(dhat.Units())...)),
		validation.Field(&c.Format, validation.Required, validation.In(anySlice(Formats())...)),
		validation.Field(&c.LogLevel, validation.By(checkLogLevel)),
		validation.Field(&c.FlameGraph),
	)
}

// Selection returns the parsed metric and unit.
func (c *Config) Selection() (dhat.Metric, dhat.Unit, error) {
	metric, err := dhat.ParseMetric(c.Metric)
	if err != nil {
		return 0, 0, err
	}
	unit, err := dhat.ParseUnit(c.Unit)
	if err != nil {
		return 0, 0, err
	}
	return metric, unit, nil
}

////////////////////////////////////////////////////////////////////////////////

// Load reads a YAML config from path. Unknown keys are rejected.
func Load(fs afero.Fs, path string) (*Config, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

func Decode(r io.Reader) (*Config, error) {
	conf := &Config{}

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	err := decoder.Decode(conf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	conf.fillDefault()
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return conf, nil
}

////////////////////////////////////////////////////////////////////////////////

func checkLogLevel(value any) error {
	level, _ := value.(string)
	_, err := zapcore.ParseLevel(level)
	return err
}

func anySlice(values []string) []any {
	res := make([]any, len(values))
	for i, v := range values {
		res[i] = v
	}
	return res
}
