package main

import (
	"github.com/3-lines-studio/asgard/internal/adapters/cli"
	"github.com/spf13/cobra"
)

func newPrecompileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "precompile [dir]",
		Short: "Build a renderer for every view below dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			r, err := a.renderer()
			if err != nil {
				return err
			}
			defer func() { _ = r.Stop() }()

			report := cli.NewPrecompileReport(output(cmd), dir)
			_, err = r.Precompile(cmd.Context(), dir)
			report.AddViews(r.Views())
			report.AddError(err)
			report.Render()

			return err
		},
	}
}
