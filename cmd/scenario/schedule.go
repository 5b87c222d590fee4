package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rendis/scenario/internal/scheduler"
	"github.com/rendis/scenario/pkg/schema"
)

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scenarios run on a cron schedule",
	}
	cmd.AddCommand(
		newScheduleAddCmd(opts),
		newScheduleListCmd(opts),
		newScheduleRemoveCmd(opts),
		newScheduleToggleCmd(opts, "enable", true),
		newScheduleToggleCmd(opts, "disable", false),
		newScheduleRunCmd(opts),
	)
	return cmd
}

func newScheduleAddCmd(opts *rootOptions) *cobra.Command {
	var cronExpr, input, inputFile string
	cmd := &cobra.Command{
		Use:   "add <id> <scenario>",
		Short: "Schedule a scenario",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseInput(input, inputFile)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				job, err := a.scheduler().Add(ctx, scheduler.Job{ID: args[0], Cron: cronExpr, Scenario: args[1], Input: in})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), job)
			})
		},
	}
	cmd.Flags().StringVar(&cronExpr, "cron", "", "cron expression, e.g. \"0 2 * * *\" or \"@hourly\"")
	cmd.Flags().StringVarP(&input, "input", "i", "", "input mapping as JSON")
	cmd.Flags().StringVarP(&inputFile, "input-file", "f", "", "input mapping from a YAML or JSON file")
	_ = cmd.MarkFlagRequired("cron")
	return cmd
}

func newScheduleListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				jobs, err := a.scheduler().List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSCENARIO\tCRON\tENABLED\tNEXT RUN\tLAST STATUS")
				for _, j := range jobs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n", j.ID, j.Scenario, j.Cron, j.Enabled, j.NextRunAt, j.LastRunStatus)
				}
				return w.Flush()
			})
		},
	}
}

func newScheduleRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return a.scheduler().Remove(ctx, args[0])
			})
		},
	}
}

func newScheduleToggleCmd(opts *rootOptions, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: use + " a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return a.scheduler().SetEnabled(ctx, args[0], enabled)
			})
		},
	}
}

func newScheduleRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run due jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				sch := a.scheduler()
				if err := syncSchedules(ctx, sch, a.cfg.Schedules, a.logger); err != nil {
					return err
				}
				if err := sch.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				return sch.Stop()
			})
		},
	}
}

// syncSchedules adds the jobs declared in the settings file. Jobs already
// stored keep their state.
func syncSchedules(ctx context.Context, sch *scheduler.Scheduler, entries []ScheduleEntry, logger *slog.Logger) error {
	for _, e := range entries {
		_, err := sch.Add(ctx, scheduler.Job{ID: e.ID, Cron: e.Cron, Scenario: e.Scenario, Input: e.Input})
		switch {
		case err == nil:
		case schema.IsCode(err, schema.ErrCodeConflict):
			logger.DebugContext(ctx, "scheduled job already stored", slog.String("job_id", e.ID))
		default:
			return fmt.Errorf("schedule %q: %w", e.ID, err)
		}
	}
	return nil
}
