package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yandex/dhatfold/internal/dhatfold/cli"
	"github.com/yandex/dhatfold/internal/dhatfold/config"
	"github.com/yandex/dhatfold/pkg/profile/dhat"
	"github.com/yandex/dhatfold/pkg/profile/flamegraph/convert"
	"github.com/yandex/dhatfold/pkg/xlog"
	"github.com/yandex/dhatfold/pkg/xpflag"
)

// DHAT frames are symbolized call sites, not bare function names.
const dhatFrameType = "Allocation frame"

type convertOptions struct {
	metric     *xpflag.Enum[dhat.Metric]
	unit       *xpflag.Enum[dhat.Unit]
	format     *xpflag.OneOf
	flamegraph flamegraphOptions
	sink       sinkOptions
}

func setupConvertCmd(env *cli.Config, common *commonOptions) *cobra.Command {
	opts := &convertOptions{
		metric: xpflag.NewEnum(dhat.MetricTotal, dhat.Metrics(), dhat.ParseMetric),
		unit:   xpflag.NewEnum(dhat.UnitBytes, dhat.Units(), dhat.ParseUnit),
		format: xpflag.NewOneOf(string(config.FormatFolded), config.Formats()...),
	}

	convertCmd := &cobra.Command{
		Use:   "convert <dhat.json> [output]",
		Short: "Convert a DHAT profile to folded stacks, a flamegraph or pprof",
		Long: `Convert a DHAT profile to folded stacks, a flamegraph or pprof.

Each program point becomes one line "frame;frame;frame value", outermost frame
first. Input "-" reads stdin, output "-" or no output writes to stdout.
Only the total metric is available for the lifetimes unit, and every metric
other than total needs a profile recorded with block lifetimes.`,
		Example: `  dhatfold convert dhat-heap.json > heap.folded
  dhatfold convert --metric heap-max --unit blocks dhat-heap.json peak.folded
  dhatfold convert --format svg dhat-heap.json heap.svg
  dhatfold convert --format pprof --serve localhost:8080 dhat-heap.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, env, common, opts, args)
		},
	}

	opts.metric.Register(convertCmd, "metric", "Program point statistic to extract")
	opts.unit.Register(convertCmd, "unit", "Quantity to extract")
	convertCmd.Flags().VarP(
		opts.format,
		"format",
		"f",
		"Output format, one of ["+opts.format.Variants()+"]",
	)
	_ = convertCmd.RegisterFlagCompletionFunc("format", opts.format.Complete)
	bindFlamegraphOptions(convertCmd, &opts.flamegraph)
	addSinkOptions(convertCmd, &opts.sink)

	return convertCmd
}

func runConvert(cmd *cobra.Command, env *cli.Config, common *commonOptions, opts *convertOptions, args []string) error {
	conf, err := loadConfig(cmd, env, common)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("metric") {
		conf.Metric = opts.metric.Value().String()
	}
	if flags.Changed("unit") {
		conf.Unit = opts.unit.Value().String()
	}
	if flags.Changed("format") {
		conf.Format = opts.format.String()
	}
	opts.flamegraph.apply(flags, &conf.FlameGraph)
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	metric, unit, err := conf.Selection()
	if err != nil {
		return err
	}

	app, err := makeCLI(env, conf)
	if err != nil {
		return err
	}
	defer app.Shutdown()

	outputPath := ""
	if len(args) > 1 {
		outputPath = args[1]
	}
	sink, err := makeProfileSink(app, outputPath, &opts.sink, config.Format(conf.Format))
	if err != nil {
		return err
	}

	ctx := xlog.WrapContext(app.Context(), zap.String("input", args[0]))

	data, err := readInput(app, args[0])
	if err != nil {
		return err
	}

	doc, err := dhat.Unmarshal(data)
	if err != nil {
		return err
	}
	app.Logger().Info(ctx, "Parsed DHAT profile",
		zap.String("command", doc.Command),
		zap.Uint32("pid", doc.PID),
		zap.String("mode", doc.Mode),
		zap.Int("program_points", len(doc.ProgramPoints)),
		zap.Int("frames", len(doc.Frames)),
		zap.Bool("lifetimes_recorded", doc.LifetimesRecorded),
	)

	profile, err := convert.DHATToCollapsed(doc, metric, unit)
	if err != nil {
		return err
	}
	app.Logger().Info(ctx, "Extracted folded stacks",
		zap.Stringer("metric", metric),
		zap.Stringer("unit", unit),
		zap.Int("samples", len(profile.Samples)),
		zap.String("format", conf.Format),
	)

	unitLabel := doc.UnitLabel(unit)
	out, err := encodeProfile(profile, conf, &profileLabels{
		sampleType: fmt.Sprintf("%s_%s", metric, unit),
		unit:       unitLabel,
		summary:    describeSelection(doc, metric, unitLabel),
		frameType:  dhatFrameType,
	})
	if err != nil {
		return err
	}

	return sink.Store(ctx, out)
}

func describeSelection(doc *dhat.Document, metric dhat.Metric, unitLabel string) string {
	res := fmt.Sprintf("%s %s", metric, unitLabel)
	if doc.Command != "" {
		res += fmt.Sprintf(" of %s (pid %d)", doc.Command, doc.PID)
	}
	return res
}
