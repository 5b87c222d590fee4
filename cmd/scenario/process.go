package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rendis/scenario/pkg/schema"
)

func newProcessCmd(opts *rootOptions) *cobra.Command {
	var input, inputFile string
	cmd := &cobra.Command{
		Use:   "process <name>",
		Short: "Run a stored data manipulation process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseInput(input, inputFile)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				kwargs := map[string]any{}
				for k, v := range in {
					kwargs[k] = v
				}
				kwargs["process"] = args[0]
				step := schema.Step{ID: "cli", Actor: "cli", Action: schema.ActionManipulate, Kwargs: kwargs}

				out, err := a.registry.Dispatch(ctx, step, kwargs)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"process": args[0], "output": out})
			})
		},
	}
	cmd.Flags().StringVarP(&input, "inputs", "i", "", "process inputs as JSON")
	cmd.Flags().StringVarP(&inputFile, "inputs-file", "f", "", "process inputs from a YAML or JSON file (- for stdin)")
	return cmd
}
