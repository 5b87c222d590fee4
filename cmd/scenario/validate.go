package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rendis/scenario/internal/manipulate"
	"github.com/rendis/scenario/internal/scenario"
	"github.com/rendis/scenario/internal/validation"
	"github.com/rendis/scenario/pkg/schema"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var file, process string
	cmd := &cobra.Command{
		Use:   "validate [scenario]",
		Short: "Check a stored scenario, a scenario file or a process file",
		Long: `Check definitions without executing them.

  scenario validate signup               stored scenario
  scenario validate --file signup.yaml   scenario file before import
  scenario validate --process totals.yaml  process definition file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := 0
			for _, v := range []bool{len(args) == 1, file != "", process != ""} {
				if v {
					set++
				}
			}
			if set != 1 {
				return fmt.Errorf("give exactly one of a scenario name, --file or --process")
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var (
					name   string
					report *schema.Report
					err    error
				)
				switch {
				case file != "":
					name, report, err = validateFile(file)
				case process != "":
					name, report, err = validateProcess(process, a.engine)
				default:
					name = args[0]
					var sc *schema.Scenario
					if sc, err = a.loader.Load(ctx, name); err == nil {
						report = validation.CheckScenario(name, sc.Steps)
					}
				}
				if err != nil {
					return err
				}
				if perr := printJSON(cmd.OutOrStdout(), map[string]any{
					"name":   name,
					"valid":  report.Valid(),
					"report": report,
				}); perr != nil {
					return perr
				}
				return report.ToError()
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "scenario YAML file")
	cmd.Flags().StringVar(&process, "process", "", "process definition YAML or JSON file")
	return cmd
}

func validateFile(path string) (string, *schema.Report, error) {
	f, err := scenario.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	docs := f.Documents()
	steps := make([]schema.Step, 0, len(docs))
	for _, doc := range docs {
		step, err := scenario.ParseStep(doc.Tag, doc.Contents)
		if err != nil {
			return f.Name, nil, err
		}
		steps = append(steps, step)
	}
	return f.Name, validation.CheckScenario(f.Name, steps), nil
}

func validateProcess(path string, lookup validation.OperationLookup) (string, *schema.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	var doc struct {
		Name     string         `yaml:"name"`
		Contents map[string]any `yaml:"contents"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", nil, schema.NewErrorf(schema.ErrCodeConfig, "decode process file: %v", err).WithCause(err)
	}
	if doc.Contents == nil {
		return "", nil, schema.NewErrorf(schema.ErrCodeConfig, "process file %s has no contents", path)
	}
	if doc.Name == "" {
		doc.Name = path
	}
	def, err := manipulate.ParseProcess(doc.Name, doc.Contents)
	if err != nil {
		return doc.Name, nil, err
	}
	return doc.Name, validation.CheckProcess(def, lookup), nil
}
