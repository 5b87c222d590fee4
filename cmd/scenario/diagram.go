package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/rendis/scenario/internal/diagram"
)

func newDiagramCmd(opts *rootOptions) *cobra.Command {
	var (
		format, output   string
		input, inputFile string
		execute          bool
	)
	cmd := &cobra.Command{
		Use:   "diagram <scenario>",
		Short: "Render a scenario as a flowchart",
		Long: `Render a stored scenario as mermaid, ascii, png or svg.
With --execute the scenario runs first and the diagram shows each step's status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseInput(input, inputFile)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				sc, err := a.loader.Load(ctx, args[0])
				if err != nil {
					return err
				}
				var snapshot map[string]any
				if execute {
					cache, runErr := a.interpreter.Execute(ctx, sc, in)
					if runErr != nil {
						a.logger.WarnContext(ctx, "scenario failed; rendering partial run", slog.String("error", runErr.Error()))
					}
					snapshot = cache.Snapshot()
				}
				model := diagram.Build(sc, snapshot)

				out, err := render(ctx, model, format)
				if err != nil {
					return err
				}
				if output != "" {
					return os.WriteFile(output, out, 0o644)
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "ascii", "mermaid, ascii, png or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVar(&execute, "execute", false, "run the scenario and overlay step statuses")
	cmd.Flags().StringVarP(&input, "input", "i", "", "input mapping as JSON (with --execute)")
	cmd.Flags().StringVarP(&inputFile, "input-file", "f", "", "input mapping from a YAML or JSON file (with --execute)")
	return cmd
}

func render(ctx context.Context, model *diagram.Model, format string) ([]byte, error) {
	switch format {
	case "mermaid":
		return []byte(diagram.RenderMermaid(model)), nil
	case "ascii":
		return []byte(diagram.RenderASCII(model)), nil
	case "png":
		return diagram.RenderImage(ctx, model, graphviz.PNG)
	case "svg":
		return diagram.RenderImage(ctx, model, graphviz.SVG)
	default:
		return nil, fmt.Errorf("unknown diagram format %q", format)
	}
}
