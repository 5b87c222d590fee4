// Package mcp exposes the scenario interpreter as an MCP stdio server.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/scenario/internal/engine"
	"github.com/rendis/scenario/internal/store"
)

// ScenarioRunner runs a stored scenario and returns its execution cache,
// which is populated up to the failing step on error.
type ScenarioRunner interface {
	ExecuteScenario(ctx context.Context, name string, input map[string]any) (*engine.Cache, error)
}

// ServerDeps holds the dependencies for creating a ScenarioServer.
type ServerDeps struct {
	Runner     ScenarioRunner
	Loader     engine.Loader
	Dispatcher engine.Dispatcher
	Store      store.DocumentStore
	Version    string
	Logger     *slog.Logger
}

// ScenarioServer wraps an MCP server with the scenario tool handlers.
type ScenarioServer struct {
	runner     ScenarioRunner
	loader     engine.Loader
	dispatcher engine.Dispatcher
	store      store.DocumentStore
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewScenarioServer creates a ScenarioServer with every tool registered.
func NewScenarioServer(deps ServerDeps) *ScenarioServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &ScenarioServer{
		runner:     deps.Runner,
		loader:     deps.Loader,
		dispatcher: deps.Dispatcher,
		store:      deps.Store,
		logger:     logger,
	}

	mcpSrv := server.NewMCPServer(
		"scenario",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Scenario runs stored step sequences against a document store. Use scenario.run to execute a scenario, scenario.process to run a data manipulation process, scenario.validate to check a stored scenario, and scenario.query to read documents."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *ScenarioServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *ScenarioServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *ScenarioServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: processTool(), Handler: s.handleProcess},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("scenario.run",
		mcp.WithDescription("Execute a stored scenario and return its execution cache"),
		mcp.WithString("scenario", mcp.Required(), mcp.Description("Name of the scenario (its collection)")),
		mcp.WithObject("input", mcp.Description("Caller input, visible to steps as @key and $input")),
	)
}

func processTool() mcp.Tool {
	return mcp.NewTool("scenario.process",
		mcp.WithDescription("Run a stored data manipulation process"),
		mcp.WithString("process", mcp.Required(), mcp.Description("Name of the process definition")),
		mcp.WithObject("inputs", mcp.Description("Process inputs, visible to process steps as @key")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("scenario.validate",
		mcp.WithDescription("Load a stored scenario and check its steps and references"),
		mcp.WithString("scenario", mcp.Required(), mcp.Description("Name of the scenario")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("scenario.query",
		mcp.WithDescription("List collections or read documents from one"),
		mcp.WithString("collection", mcp.Description("Collection to read; omit to list collections")),
		mcp.WithArray("filters", mcp.Description("Filters as [field, op, value] triples")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of documents")),
	)
}
