package cmd

import (
	"fmt"

	pprof "github.com/google/pprof/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yandex/dhatfold/internal/dhatfold/cli"
	"github.com/yandex/dhatfold/internal/dhatfold/config"
	"github.com/yandex/dhatfold/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/dhatfold/pkg/profile/flamegraph/convert"
	"github.com/yandex/dhatfold/pkg/xlog"
	"github.com/yandex/dhatfold/pkg/xpflag"
)

const (
	inputFormatCollapsed = "collapsed"
	inputFormatPProf     = "pprof"
)

type renderOptions struct {
	inputFormat *xpflag.OneOf
	format      *xpflag.OneOf
	sampleUnit  string
	flamegraph  flamegraphOptions
	sink        sinkOptions
}

func setupRenderCmd(env *cli.Config, common *commonOptions) *cobra.Command {
	opts := &renderOptions{
		inputFormat: xpflag.NewOneOf(inputFormatCollapsed, inputFormatCollapsed, inputFormatPProf),
		format:      xpflag.NewOneOf(string(config.FormatSVG), config.Formats()...),
	}

	renderCmd := &cobra.Command{
		Use:   "render <stacks> [output]",
		Short: "Render folded stacks or a pprof profile",
		Example: `  dhatfold convert dhat-heap.json | dhatfold render - heap.svg
  dhatfold render --input-format pprof --format folded heap.pb.gz`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, env, common, opts, args)
		},
	}

	renderCmd.Flags().Var(
		opts.inputFormat,
		"input-format",
		"Input format, one of ["+opts.inputFormat.Variants()+"]",
	)
	_ = renderCmd.RegisterFlagCompletionFunc("input-format", opts.inputFormat.Complete)
	renderCmd.Flags().VarP(
		opts.format,
		"format",
		"f",
		"Output format, one of ["+opts.format.Variants()+"]",
	)
	_ = renderCmd.RegisterFlagCompletionFunc("format", opts.format.Complete)
	renderCmd.Flags().StringVar(
		&opts.sampleUnit,
		"sample-unit",
		"samples",
		"Unit of folded stack values shown in tooltips, pprof inputs carry their own",
	)
	bindFlamegraphOptions(renderCmd, &opts.flamegraph)
	addSinkOptions(renderCmd, &opts.sink)

	return renderCmd
}

func runRender(cmd *cobra.Command, env *cli.Config, common *commonOptions, opts *renderOptions, args []string) error {
	conf, err := loadConfig(cmd, env, common)
	if err != nil {
		return err
	}
	conf.Format = opts.format.String()
	opts.flamegraph.apply(cmd.Flags(), &conf.FlameGraph)
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
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

	labels := &profileLabels{sampleType: "samples", unit: opts.sampleUnit}
	var profile *collapsed.Profile
	switch opts.inputFormat.String() {
	case inputFormatPProf:
		prof, err := pprof.ParseData(data)
		if err != nil {
			return fmt.Errorf("failed to parse pprof profile: %w", err)
		}
		if sampleType := defaultSampleType(prof); sampleType != nil {
			labels.sampleType = sampleType.Type
			labels.unit = sampleType.Unit
		}
		profile, err = convert.PProfToCollapsed(prof)
		if err != nil {
			return err
		}
	default:
		profile, err = collapsed.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("failed to parse folded stacks: %w", err)
		}
	}
	labels.summary = fmt.Sprintf("%d stacks, %s", len(profile.Samples), labels.unit)

	app.Logger().Info(ctx, "Loaded stacks",
		zap.String("input_format", opts.inputFormat.String()),
		zap.Int("samples", len(profile.Samples)),
		zap.String("format", conf.Format),
	)

	out, err := encodeProfile(profile, conf, labels)
	if err != nil {
		return err
	}
	return sink.Store(ctx, out)
}

func defaultSampleType(prof *pprof.Profile) *pprof.ValueType {
	for _, sampleType := range prof.SampleType {
		if sampleType.Type == prof.DefaultSampleType {
			return sampleType
		}
	}
	if len(prof.SampleType) > 0 {
		return prof.SampleType[0]
	}
	return nil
}
