package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/presentation/graph"
	"github.com/aretw0/canopy/internal/runtime"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/plan"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine defines the interface for the Canopy orchestration core.
type Engine interface {
	Tasks() []domain.TaskInfo
	Plan(refs ...string) (*plan.Selection, error)
	Run(ctx context.Context, refs []string, opts domain.RunOptions) (*runtime.Result, error)
	LoadRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context) ([]string, error)
	DeleteRun(ctx context.Context, runID string) error
}

var _ Engine = (*canopy.Engine)(nil)

// Server implements ServerInterface
type Server struct {
	Engine Engine
	Logger *slog.Logger
}

// Ensure Server implements ServerInterface
var _ ServerInterface = (*Server)(nil)

// HandlerOption configures NewHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// WithLogger sets the logger used for request failures.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(c *handlerConfig) { c.logger = logger }
}

// WithMetrics exposes the collectors of g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) HandlerOption {
	return func(c *handlerConfig) { c.gatherer = g }
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...HandlerOption) http.Handler {
	cfg := handlerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	server := &Server{Engine: engine, Logger: cfg.logger}
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		spec, err := rawSpec()
		if err != nil {
			http.Error(w, "Failed to load spec", http.StatusInternalServerError)
			server.Logger.Error("Failed to load OpenAPI spec", "error", err)
			return
		}
		w.Write(spec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if cfg.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))
	}

	handler := HandlerFromMux(server, r)
	return enableCORS(handler)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Canopy API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "canopy-http",
		"version":     strings.TrimSpace(canopy.Version),
		"api_version": apiVersion,
	})
}

// ListTasks handles the GET /tasks request.
func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request, params ListTasksParams) {
	tasks := s.Engine.Tasks()
	if params.Project != nil {
		filtered := make([]domain.TaskInfo, 0, len(tasks))
		for _, t := range tasks {
			if t.ID.Project == *params.Project {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetGraph handles the GET /graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request, params GetGraphParams) {
	tasks := s.Engine.Tasks()
	if params.Target != nil && len(*params.Target) > 0 {
		sel, err := s.Engine.Plan(*params.Target...)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		tasks = sel.Infos()
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(tasks, nil))
}

// PlanTasks handles the POST /plan request.
func (s *Server) PlanTasks(w http.ResponseWriter, r *http.Request) {
	var body PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	sel, err := s.Engine.Plan(body.Targets...)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, Plan{
		Targets: idStrings(sel.Targets()),
		Tasks:   idStrings(sel.Tasks()),
		Leaves:  idStrings(sel.Leaves()),
	})
}

// ListRuns handles the GET /runs request.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.ListRuns(r.Context())
	if err != nil {
		s.Logger.Error("ListRuns failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// CreateRun handles the POST /runs request. It blocks until the run finishes.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(body.Targets) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("at least one target is required"))
		return
	}

	opts := domain.RunOptions{}
	if body.ContinueOnFailure != nil {
		opts.ContinueOnFailure = *body.ContinueOnFailure
	}
	if body.Parallelism != nil {
		opts.Parallelism = *body.Parallelism
	}
	if body.TerminateRunning != nil {
		opts.TerminateRunning = *body.TerminateRunning
	}

	res, err := s.Engine.Run(r.Context(), body.Targets, opts)
	if res == nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err != nil {
		s.Logger.Info("run did not succeed", "run_id", res.RunID, "error", err)
	}

	rec, loadErr := s.Engine.LoadRun(r.Context(), res.RunID)
	if loadErr != nil {
		rec = res.Record("", opts)
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetRun handles the GET /runs/{runId} request.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request, runID string) {
	rec, err := s.Engine.LoadRun(r.Context(), runID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRun handles the DELETE /runs/{runId} request.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request, runID string) {
	if err := s.Engine.DeleteRun(r.Context(), runID); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.Logger.Error("DeleteRun failed", "run_id", runID, "error", err)
		}
		writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- Helpers --

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownTask), errors.Is(err, domain.ErrUnknownProject),
		errors.Is(err, domain.ErrInvalidRunID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, Error{Error: err.Error()})
}

func idStrings(ids []domain.TaskID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
