package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yandex/dhatfold/internal/dhatfold/cli"
	"github.com/yandex/dhatfold/internal/dhatfold/config"
	"github.com/yandex/dhatfold/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/dhatfold/pkg/profile/flamegraph/convert"
	"github.com/yandex/dhatfold/pkg/profile/flamegraph/render"
	"github.com/yandex/dhatfold/pkg/xpflag"
)

const stdoutPath = "-"

////////////////////////////////////////////////////////////////////////////////

type sinkOptions struct {
	serveAddress   string
	disableBrowser bool
}

func addSinkOptions(cmd *cobra.Command, opts *sinkOptions) {
	cmd.Flags().StringVarP(
		&opts.serveAddress,
		"serve",
		"S",
		"",
		"Address to serve the result at, e.g. localhost:8080",
	)
	cmd.Flags().BoolVar(
		&opts.disableBrowser,
		"no-browser",
		false,
		"Do not try to open the served result in a browser",
	)
}

func makeProfileSink(app *cli.App, outputPath string, opts *sinkOptions, format config.Format) (ProfileSink, error) {
	sinkLog := app.Logger().WithName("sink")

	if opts.serveAddress != "" {
		if outputPath != "" && outputPath != stdoutPath {
			return nil, errors.New("--serve cannot be combined with an output path")
		}
		if format == config.FormatPProf {
			return MakePProfSink(sinkLog, opts.serveAddress, !opts.disableBrowser), nil
		}
		return MakeHTTPSink(sinkLog, opts.serveAddress, contentType(format), !opts.disableBrowser), nil
	}

	if outputPath == "" || outputPath == stdoutPath {
		return MakeWriterSink(sinkLog, app.Stdout()), nil
	}
	return MakeFileSink(sinkLog, app.Fs(), outputPath), nil
}

func contentType(format config.Format) string {
	switch format {
	case config.FormatSVG:
		return "image/svg+xml"
	case config.FormatJSON:
		return "application/json"
	case config.FormatPProf:
		return "application/octet-stream"
	default:
		return "text/plain; charset=utf-8"
	}
}

////////////////////////////////////////////////////////////////////////////////

type flamegraphOptions struct {
	title     string
	subtitle  string
	width     float64
	fontSize  float64
	minWeight *xpflag.Func[float64]
	maxDepth  int
	inverted  bool
	palette   *xpflag.OneOf
}

func bindFlamegraphOptions(cmd *cobra.Command, opts *flamegraphOptions) {
	defaults := config.Default().FlameGraph
	flags := cmd.Flags()

	flags.StringVar(&opts.title, "title", defaults.Title, "Flamegraph title")
	flags.StringVar(&opts.subtitle, "subtitle", "", "Flamegraph subtitle, defaults to a profile summary")
	flags.Float64Var(&opts.width, "width", defaults.Width, "Flamegraph width in pixels")
	flags.Float64Var(&opts.fontSize, "font-size", defaults.FontSize, "Flamegraph font size in pixels")
	opts.minWeight = xpflag.NewFunc(strconv.FormatFloat(defaults.MinWeight, 'g', -1, 64), parseWeight)
	flags.Var(
		opts.minWeight,
		"min-weight",
		"Minimum relative frame weight to render as a fraction or a percentage (0.01 or 1%), narrower frames are folded into (truncated stack)",
	)
	flags.IntVar(&opts.maxDepth, "max-depth", 0, "Maximum stack depth to render, 0 means unlimited")
	flags.BoolVar(&opts.inverted, "inverted", false, "Render an icicle graph growing downwards")

	opts.palette = xpflag.NewOneOf(defaults.Palette, config.Palettes()...)
	flags.Var(opts.palette, "palette", "Flamegraph palette, one of ["+opts.palette.Variants()+"]")
	_ = cmd.RegisterFlagCompletionFunc("palette", opts.palette.Complete)
}

// apply overrides conf with explicitly set flags.
func (o *flamegraphOptions) apply(flags *pflag.FlagSet, conf *config.FlameGraphConfig) {
	if flags.Changed("title") {
		conf.Title = o.title
	}
	if flags.Changed("subtitle") {
		conf.Subtitle = o.subtitle
	}
	if flags.Changed("width") {
		conf.Width = o.width
	}
	if flags.Changed("font-size") {
		conf.FontSize = o.fontSize
	}
	if flags.Changed("min-weight") {
		conf.MinWeight = o.minWeight.Value()
	}
	if flags.Changed("max-depth") {
		conf.MaxDepth = o.maxDepth
	}
	if flags.Changed("inverted") {
		conf.Inverted = o.inverted
	}
	if flags.Changed("palette") {
		conf.Palette = o.palette.String()
	}
}

func parseWeight(value string) (float64, error) {
	value = strings.TrimSpace(value)
	percent, isPercent := strings.CutSuffix(value, "%")
	weight, err := strconv.ParseFloat(percent, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid weight %q", value)
	}
	if isPercent {
		weight /= 100
	}
	return weight, nil
}

////////////////////////////////////////////////////////////////////////////////

type profileLabels struct {
	// pprof sample type, e.g. "total_bytes".
	sampleType string
	// Unit of the sample values, e.g. "bytes".
	unit string
	// Subtitle used when none is configured.
	summary string
	// What a stack entry is, "Function" when empty.
	frameType string
}

func newFlameGraph(conf *config.FlameGraphConfig, format config.Format, labels *profileLabels) *render.FlameGraph {
	fg := render.NewFlameGraph()
	fg.SetTitle(conf.Title)
	if conf.Subtitle != "" {
		fg.SetSubtitle(conf.Subtitle)
	} else {
		fg.SetSubtitle(labels.summary)
	}
	fg.SetWidth(conf.Width)
	fg.SetFontSize(conf.FontSize)
	fg.SetMinWeight(conf.MinWeight)
	fg.SetDepthLimit(conf.MaxDepth)
	fg.SetInverted(conf.Inverted)
	fg.SetPalette(render.Palette(conf.Palette))
	fg.SetSampleType(labels.unit)
	if labels.frameType != "" {
		fg.SetFrameType(labels.frameType)
	}
	if format == config.FormatJSON {
		fg.SetFormat(render.JSONFormat)
	} else {
		fg.SetFormat(render.SVGFormat)
	}
	return fg
}

func encodeProfile(profile *collapsed.Profile, conf *config.Config, labels *profileLabels) ([]byte, error) {
	format := config.Format(conf.Format)

	switch format {
	case config.FormatFolded:
		return collapsed.Marshal(profile)

	case config.FormatSVG, config.FormatJSON:
		fg := newFlameGraph(&conf.FlameGraph, format, labels)
		var buf bytes.Buffer
		if err := fg.RenderCollapsed(profile, &buf); err != nil {
			return nil, fmt.Errorf("failed to render flamegraph: %w", err)
		}
		return buf.Bytes(), nil

	case config.FormatPProf:
		prof, err := convert.CollapsedToPProf(profile, labels.sampleType, labels.unit)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := prof.Write(&buf); err != nil {
			return nil, fmt.Errorf("failed to serialize pprof profile: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported output format %q", conf.Format)
	}
}
