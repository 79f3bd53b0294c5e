package cobrabuildinfo

import (
	"github.com/spf13/cobra"

	"github.com/yandex/dhatfold/internal/buildinfo"
)

func makeVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return buildinfo.Dump(cmd.OutOrStdout())
		},
	}
}

func Init(cmd *cobra.Command) {
	cmd.AddCommand(makeVersionCmd())
}
