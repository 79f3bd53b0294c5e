package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"lukechampine.com/uint128"

	"github.com/yandex/dhatfold/internal/dhatfold/cli"
	"github.com/yandex/dhatfold/pkg/profile/dhat"
)

func setupInspectCmd(env *cli.Config, common *commonOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <dhat.json>",
		Short: "Print a summary of a DHAT profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd, env, common)
			if err != nil {
				return err
			}

			app, err := makeCLI(env, conf)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			data, err := readInput(app, args[0])
			if err != nil {
				return err
			}

			doc, err := dhat.Unmarshal(data)
			if err != nil {
				return err
			}

			return writeSummary(app.Stdout(), doc)
		},
	}
}

func writeSummary(w io.Writer, doc *dhat.Document) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	row := func(key string, format string, args ...any) {
		fmt.Fprintf(tw, "%s:\t%s\n", key, fmt.Sprintf(format, args...))
	}

	row("Version", "%d", doc.Version)
	row("Mode", "%s", doc.Mode)
	row("Verb", "%s", doc.Verb)
	row("Command", "%s", doc.Command)
	row("PID", "%d", doc.PID)
	row("Block lifetimes", "%s", recorded(doc.LifetimesRecorded))
	row("Block accesses", "%s", recorded(doc.AccessesRecorded))
	row("Units", "%s / %s / %s, time in %s (%s)",
		doc.ByteUnit, doc.BytesUnit, doc.BlocksUnit, doc.TimeUnit, doc.MegaTimeUnit)
	if doc.ShortLivedThreshold != nil {
		row("Short-lived threshold", "%d %s", *doc.ShortLivedThreshold, doc.TimeUnit)
	}
	if doc.GlobalMaxTime != nil {
		row("Heap peak time", "%s %s", doc.GlobalMaxTime, doc.TimeUnit)
	}
	row("End time", "%s %s", doc.EndTime, doc.TimeUnit)
	row("Program points", "%s", humanize.Comma(int64(len(doc.ProgramPoints))))
	row("Frames", "%s", humanize.Comma(int64(len(doc.Frames))))
	row("Total", "%s %s (%s) in %s %s",
		comma(doc.TotalBytes()), doc.BytesUnit, humanize.BigIBytes(doc.TotalBytes().Big()),
		comma(doc.TotalBlocks()), doc.BlocksUnit)

	return tw.Flush()
}

func recorded(flag bool) string {
	if flag {
		return "recorded"
	}
	return "not recorded"
}

func comma(value uint128.Uint128) string {
	return humanize.BigComma(value.Big())
}
