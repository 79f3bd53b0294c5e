package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/yandex/dhatfold/internal/buildinfo/cobrabuildinfo"
	"github.com/yandex/dhatfold/internal/dhatfold/cli"
	"github.com/yandex/dhatfold/internal/dhatfold/config"
	"github.com/yandex/dhatfold/pkg/xpflag"
)

type commonOptions struct {
	configPath string
	logLevel   *xpflag.OneOf
}

// NewRootCommand builds the dhatfold command tree.
// env carries the process environment, tests substitute it.
func NewRootCommand(env *cli.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dhatfold",
		Short: "Convert DHAT heap profiles to folded stacks and flamegraphs",
		Long: `dhatfold reads the JSON profile written by DHAT (valgrind --tool=dhat or the
Rust dhat crate) and emits one folded stack line per allocation site, ready to be
rendered by flamegraph tools, or renders the flamegraph itself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	common := &commonOptions{
		logLevel: xpflag.NewOneOf("info", "debug", "info", "warn", "error"),
	}
	rootCmd.PersistentFlags().StringVarP(
		&common.configPath,
		"config",
		"c",
		"",
		"Path to a YAML config, explicitly set flags take precedence",
	)
	rootCmd.PersistentFlags().Var(
		common.logLevel,
		"log-level",
		"Logging level, one of ["+common.logLevel.Variants()+"]",
	)
	_ = rootCmd.MarkPersistentFlagFilename("config", "yaml", "yml")
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", common.logLevel.Complete)

	if env.Stdout != nil {
		rootCmd.SetOut(env.Stdout)
	}

	rootCmd.AddCommand(
		setupConvertCmd(env, common),
		setupRenderCmd(env, common),
		setupInspectCmd(env, common),
	)
	cobrabuildinfo.Init(rootCmd)

	return rootCmd
}

func Execute() {
	if err := NewRootCommand(&cli.Config{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

////////////////////////////////////////////////////////////////////////////////

// loadConfig reads --config if given and applies --log-level on top of it.
func loadConfig(cmd *cobra.Command, env *cli.Config, common *commonOptions) (*config.Config, error) {
	conf := config.Default()
	if common.configPath != "" {
		fs := env.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		var err error
		conf, err = config.Load(fs, common.configPath)
		if err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("log-level") {
		conf.LogLevel = common.logLevel.String()
	}
	return conf, nil
}

func makeCLI(env *cli.Config, conf *config.Config) (*cli.App, error) {
	appConfig := *env
	appConfig.LogLevel = conf.LogLevel

	app, err := cli.New(&appConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CLI: %w", err)
	}
	return app, nil
}
