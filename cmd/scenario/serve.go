package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/scenario/internal/scheduler"
	"github.com/rendis/scenario/pkg/mcp"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var withScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scenario tools over MCP on stdio",
		Long:  "Start an MCP server on stdin/stdout exposing scenario.run, scenario.process, scenario.validate and scenario.query. Logs go to stderr.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if withScheduler {
					sch := a.scheduler()
					if err := syncSchedules(ctx, sch, a.cfg.Schedules, a.logger); err != nil {
						return err
					}
					if err := sch.Start(ctx); err != nil {
						return err
					}
					defer func(s *scheduler.Scheduler) { _ = s.Stop() }(sch)
				}

				srv := mcp.NewScenarioServer(mcp.ServerDeps{
					Runner:     a.interpreter,
					Loader:     a.loader,
					Dispatcher: a.registry,
					Store:      a.store,
					Version:    version,
					Logger:     a.logger,
				})
				a.logger.InfoContext(ctx, "mcp server listening on stdio")
				return srv.Serve(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&withScheduler, "scheduler", true, "also run scheduled jobs while serving")
	return cmd
}
