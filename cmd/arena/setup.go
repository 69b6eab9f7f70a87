package main

import (
	"github.com/spf13/cobra"

	"github.com/vadiminshakov/arena/internal/setup"
)

func newSetupCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Generate a relay config interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setup.RunTUI(out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", setup.DefaultFile, "where to write the config")
	return cmd
}
