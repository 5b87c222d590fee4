package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rendis/scenario/internal/engine"
	"github.com/rendis/scenario/internal/streaming"
	"github.com/rendis/scenario/pkg/schema"
)

type runOutput struct {
	Scenario string         `json:"scenario"`
	OK       bool           `json:"ok"`
	Cache    map[string]any `json:"cache"`
	Error    string         `json:"error,omitempty"`
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		input, inputFile string
		watch            bool
	)
	cmd := &cobra.Command{
		Use:   "run <scenario> [scenario...]",
		Short: "Execute scenarios and print their execution caches",
		Long:  "Execute one or more stored scenarios. Several scenarios run concurrently, each with its own cache and the same input.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseInput(input, inputFile)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if watch {
					stop, err := watchProgress(ctx, a.events, cmd.ErrOrStderr())
					if err != nil {
						return err
					}
					defer stop()
				}
				var results []engine.RunResult
				if len(args) == 1 {
					cache, err := a.interpreter.ExecuteScenario(ctx, args[0], in)
					results = []engine.RunResult{{Scenario: args[0], Cache: cache, Err: err}}
				} else {
					pool := engine.NewWorkerPool(a.cfg.PoolSize)
					defer pool.Shutdown()
					runs := make([]engine.Run, len(args))
					for i, name := range args {
						runs[i] = engine.Run{Scenario: name, Input: in}
					}
					results = a.interpreter.RunMany(ctx, pool, runs)
				}
				return report(cmd, results)
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input mapping as JSON")
	cmd.Flags().StringVarP(&inputFile, "input-file", "f", "", "input mapping from a YAML or JSON file (- for stdin)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "print step progress to stderr")
	return cmd
}

// watchProgress prints every progress event to w until stop is called.
func watchProgress(ctx context.Context, hub streaming.EventHub, w io.Writer) (stop func(), err error) {
	ch, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			line := fmt.Sprintf("%s %s", ev.Scenario, ev.EventType)
			if ev.Step > 0 {
				line += fmt.Sprintf(" step_%d", ev.Step)
			}
			if ev.Label != "" {
				line += " " + ev.Label
			}
			if ev.Error != "" {
				line += ": " + ev.Error
			}
			fmt.Fprintln(w, line)
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

func report(cmd *cobra.Command, results []engine.RunResult) error {
	outputs := make([]runOutput, len(results))
	failed := 0
	for i, r := range results {
		outputs[i] = runOutput{Scenario: r.Scenario, OK: r.Err == nil}
		if r.Cache != nil {
			outputs[i].Cache = r.Cache.Snapshot()
		}
		if r.Err != nil {
			outputs[i].Error = r.Err.Error()
			failed++
		}
	}

	var payload any = outputs
	if len(outputs) == 1 {
		payload = outputs[0]
	}
	if err := printJSON(cmd.OutOrStdout(), payload); err != nil {
		return err
	}

	switch {
	case failed == 0:
		return nil
	case len(results) == 1:
		return results[0].Err
	default:
		errs := make([]error, 0, failed)
		for _, r := range results {
			if r.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", r.Scenario, r.Err))
			}
		}
		return schema.NewErrorf(schema.ErrCodeExecution, "%d of %d scenarios failed", failed, len(results)).
			WithCause(errors.Join(errs...))
	}
}
