package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/scenario/internal/scenario"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "import <file|dir>",
		Short: "Store scenario files with their bundled processes and services",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				info, err := os.Stat(args[0])
				if err != nil {
					return err
				}
				im := a.importer()
				if !info.IsDir() {
					f, err := scenario.ReadFile(args[0])
					if err != nil {
						return err
					}
					if err := im.Import(ctx, f); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", f.Name)
					return nil
				}
				names, err := im.ImportGlob(ctx, args[0], pattern)
				for _, n := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", n)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "**/*.yaml", "glob of scenario files under a directory")
	return cmd
}
