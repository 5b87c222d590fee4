package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "scenario",
		Short:         "Run stored scenarios against a document store",
		Long:          "scenario interprets ordered step documents: reads, writes, updates, deletes, data manipulation processes and outbound sends.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "settings file (default ~/.scenario/settings.{json,yaml})")
	pf.String("db-path", "", "libSQL database URI, or \"memory\"")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: json, text or tint")
	pf.Int("pool-size", 0, "concurrent scenario runs")

	root.AddCommand(
		newRunCmd(opts),
		newProcessCmd(opts),
		newValidateCmd(opts),
		newImportCmd(opts),
		newScheduleCmd(opts),
		newServeCmd(opts),
		newSecretCmd(opts),
		newDiagramCmd(opts),
		newVersionCmd(),
	)
	return root
}

// withApp loads configuration, wires the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(opts.configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// parseInput reads a mapping from an inline JSON string or a YAML/JSON file.
func parseInput(inline, file string) (map[string]any, error) {
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("use either an inline input or an input file, not both")
	case inline != "":
		var m map[string]any
		if err := json.Unmarshal([]byte(inline), &m); err != nil {
			return nil, fmt.Errorf("parse input JSON: %w", err)
		}
		return m, nil
	case file != "":
		var r io.Reader
		if file == "-" {
			r = os.Stdin
		} else {
			f, err := os.Open(file)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		var m map[string]any
		if err := yaml.NewDecoder(r).Decode(&m); err != nil && err != io.EOF {
			return nil, fmt.Errorf("parse input file: %w", err)
		}
		return m, nil
	}
	return nil, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
