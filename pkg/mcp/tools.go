package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/scenario/internal/actions"
	"github.com/rendis/scenario/internal/validation"
	"github.com/rendis/scenario/pkg/schema"
)

// runResult is the scenario.run payload. Cache is present on failure too.
type runResult struct {
	Scenario string                `json:"scenario"`
	OK       bool                  `json:"ok"`
	Cache    map[string]any        `json:"cache"`
	Error    *schema.ScenarioError `json:"error,omitempty"`
}

// handleRun executes a stored scenario.
func (s *ScenarioServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("scenario")
	if err != nil {
		return mcp.NewToolResultError("scenario is required"), nil
	}
	if s.runner == nil {
		return mcp.NewToolResultError("scenario runner is not configured"), nil
	}
	input := mcp.ParseStringMap(req, "input", nil)

	cache, runErr := s.runner.ExecuteScenario(ctx, name, input)
	out := runResult{Scenario: name, OK: runErr == nil}
	if cache != nil {
		out.Cache = cache.Snapshot()
	}
	if runErr != nil {
		out.Error = asScenarioError(runErr)
		s.logger.WarnContext(ctx, "scenario run failed via mcp",
			slog.String("scenario", name),
			slog.String("error", runErr.Error()),
		)
	}

	result, err := marshalResult(out)
	if err == nil && runErr != nil {
		result.IsError = true
	}
	return result, err
}

// handleProcess runs a process through the manipulate action.
func (s *ScenarioServer) handleProcess(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("process")
	if err != nil {
		return mcp.NewToolResultError("process is required"), nil
	}
	if s.dispatcher == nil {
		return mcp.NewToolResultError("dispatcher is not configured"), nil
	}

	kwargs := map[string]any{"process": name}
	for k, v := range mcp.ParseStringMap(req, "inputs", nil) {
		if k != "process" {
			kwargs[k] = v
		}
	}
	step := schema.Step{ID: "mcp", Actor: "mcp", Action: schema.ActionManipulate, Kwargs: kwargs}

	output, runErr := s.dispatcher.Dispatch(ctx, step, kwargs)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("process %q failed: %v", name, runErr)), nil
	}
	return marshalResult(map[string]any{"process": name, "output": output})
}

// handleValidate loads a scenario and reports problems without running it.
func (s *ScenarioServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("scenario")
	if err != nil {
		return mcp.NewToolResultError("scenario is required"), nil
	}
	if s.loader == nil {
		return mcp.NewToolResultError("scenario loader is not configured"), nil
	}

	sc, loadErr := s.loader.Load(ctx, name)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", loadErr)), nil
	}
	report := validation.CheckScenario(sc.Name, sc.Steps)
	return marshalResult(map[string]any{
		"scenario": sc.Name,
		"steps":    len(sc.Steps),
		"valid":    report.Valid(),
		"report":   report,
	})
}

// handleQuery lists collections or reads documents.
func (s *ScenarioServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("document store is not configured"), nil
	}
	collection := req.GetString("collection", "")
	if collection == "" {
		names, err := s.store.Collections(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list collections failed: %v", err)), nil
		}
		return marshalResult(map[string]any{"collections": names})
	}

	args := req.GetArguments()
	filters, err := actions.ParseFilters(args["filters"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := s.store.Query(ctx, collection, filters, req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = d.ToMap()
	}
	return marshalResult(map[string]any{"collection": collection, "documents": out})
}

func asScenarioError(err error) *schema.ScenarioError {
	if se, ok := err.(*schema.ScenarioError); ok {
		return se
	}
	return schema.NewError(schema.ErrCodeExecution, err.Error())
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
