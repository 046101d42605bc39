package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/presentation/graph"
	"github.com/aretw0/canopy/internal/runtime"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/plan"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Engine defines the interface required by the MCP server to interact with Canopy.
type Engine interface {
	Tasks() []domain.TaskInfo
	Plan(refs ...string) (*plan.Selection, error)
	Run(ctx context.Context, refs []string, opts domain.RunOptions) (*runtime.Result, error)
	LoadRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context) ([]string, error)
}

var _ Engine = (*canopy.Engine)(nil)

// TargetArgs names the tasks a tool acts on.
type TargetArgs struct {
	Targets string `json:"targets"`
}

// RunArgs are the arguments of the run_tasks tool.
type RunArgs struct {
	Targets           string `json:"targets"`
	ContinueOnFailure bool   `json:"continue_on_failure,omitempty"`
	Parallelism       int    `json:"parallelism,omitempty"`
}

// PlanResponse lists the tasks an invocation would execute.
type PlanResponse struct {
	Targets []string `json:"targets" jsonschema_description:"Resolved targets"`
	Tasks   []string `json:"tasks" jsonschema_description:"Every selected task, dependencies first"`
	Leaves  []string `json:"leaves" jsonschema_description:"Primitive tasks that would run"`
}

// RunResponse summarizes a finished run.
type RunResponse struct {
	RunID     string              `json:"run_id" jsonschema_description:"ID of the persisted run"`
	Status    domain.RunStatus    `json:"status" jsonschema_description:"succeeded, failed or cancelled"`
	Failures  []string            `json:"failures,omitempty" jsonschema_description:"Tasks that failed"`
	Causes    map[string][]string `json:"causes,omitempty" jsonschema_description:"Skipped tasks and the failures that caused them"`
	Abandoned []string            `json:"abandoned,omitempty" jsonschema_description:"Tasks never started"`
	Error     string              `json:"error,omitempty" jsonschema_description:"Run failure message"`
}

// Server wraps the Canopy Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("canopy-mcp", strings.TrimSpace(canopy.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		slog.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: list_tasks
	s.mcpServer.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List every task of the workspace with its kind, group and dependencies."),
		mcp.WithString("project", mcp.Description("Only list tasks of this project path (empty for the root)")),
	), s.handleListTasks)

	// TOOL: plan_tasks
	s.mcpServer.AddTool(mcp.NewTool("plan_tasks",
		mcp.WithDescription("Show which tasks would run for the given targets, without running them."),
		mcp.WithString("targets", mcp.Required(), mcp.Description("Task references separated by spaces or commas, e.g. 'assembleAllDebug openxr/hello_xr:clean'")),
		mcp.WithOutputSchema[PlanResponse](),
	), mcp.NewStructuredToolHandler(s.handlePlan))

	// TOOL: run_tasks
	s.mcpServer.AddTool(mcp.NewTool("run_tasks",
		mcp.WithDescription("Run the given targets and wait for the run to finish."),
		mcp.WithString("targets", mcp.Required(), mcp.Description("Task references separated by spaces or commas")),
		mcp.WithBoolean("continue_on_failure", mcp.Description("Keep running independent tasks after a failure")),
		mcp.WithNumber("parallelism", mcp.Description("Maximum tasks running at once (0 = number of CPUs)")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleRun))

	// TOOL: get_run
	s.mcpServer.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Get the persisted record of a run. Without run_id, lists run IDs, most recent first."),
		mcp.WithString("run_id", mcp.Description("The run ID returned by run_tasks")),
	), s.handleGetRun)
}

func splitTargets(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}

func idStrings(ids []domain.TaskID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks := s.engine.Tasks()
	if project, ok := request.GetArguments()["project"].(string); ok {
		filtered := make([]domain.TaskInfo, 0, len(tasks))
		for _, t := range tasks {
			if t.ID.Project == project {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	jsonBytes, err := json.Marshal(tasks)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handlePlan(ctx context.Context, request mcp.CallToolRequest, args TargetArgs) (PlanResponse, error) {
	sel, err := s.engine.Plan(splitTargets(args.Targets)...)
	if err != nil {
		return PlanResponse{}, fmt.Errorf("plan failed: %w", err)
	}
	return PlanResponse{
		Targets: idStrings(sel.Targets()),
		Tasks:   idStrings(sel.Tasks()),
		Leaves:  idStrings(sel.Leaves()),
	}, nil
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest, args RunArgs) (RunResponse, error) {
	opts := domain.RunOptions{
		ContinueOnFailure: args.ContinueOnFailure,
		Parallelism:       args.Parallelism,
	}
	res, err := s.engine.Run(ctx, splitTargets(args.Targets), opts)
	if res == nil {
		return RunResponse{}, fmt.Errorf("run failed: %w", err)
	}

	resp := RunResponse{
		RunID:     res.RunID,
		Status:    res.Status(),
		Failures:  idStrings(res.Failures),
		Abandoned: idStrings(res.Abandoned),
	}
	if len(res.Causes) > 0 {
		resp.Causes = make(map[string][]string, len(res.Causes))
		for id, causes := range res.Causes {
			resp.Causes[id.String()] = idStrings(causes)
		}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var payload any
	runID, _ := request.GetArguments()["run_id"].(string)
	if runID == "" {
		ids, err := s.engine.ListRuns(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		payload = ids
	} else {
		rec, err := s.engine.LoadRun(ctx, runID)
		if errors.Is(err, domain.ErrRunNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("run %s not found", runID)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		payload = rec
	}
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	// EXPOSE: canopy://graph
	s.mcpServer.AddResource(mcp.NewResource("canopy://graph", "Task Graph (Mermaid)",
		mcp.WithMIMEType("text/plain"),
	), s.handleGraphResource)

	// EXPOSE: canopy://tasks
	s.mcpServer.AddResource(mcp.NewResource("canopy://tasks", "Task Definitions",
		mcp.WithMIMEType("application/json"),
	), s.handleTasksResource)
}

func (s *Server) handleGraphResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "canopy://graph",
			MIMEType: "text/plain",
			Text:     graph.GenerateMermaid(s.engine.Tasks(), nil),
		},
	}, nil
}

func (s *Server) handleTasksResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.engine.Tasks())
	if err != nil {
		return nil, fmt.Errorf("failed to encode tasks: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "canopy://tasks",
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
