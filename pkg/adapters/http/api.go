package http

import (
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi.yaml
var openapiSpec []byte

// PlanRequest is the body of POST /plan.
type PlanRequest struct {
	Targets []string `json:"targets"`
}

// Plan lists the tasks an invocation would execute.
type Plan struct {
	Targets []string `json:"targets"`
	Tasks   []string `json:"tasks"`
	Leaves  []string `json:"leaves"`
}

// RunRequest is the body of POST /runs.
type RunRequest struct {
	Targets           []string `json:"targets"`
	ContinueOnFailure *bool    `json:"continue_on_failure,omitempty"`
	Parallelism       *int     `json:"parallelism,omitempty"`
	TerminateRunning  *bool    `json:"terminate_running,omitempty"`
}

// Error is the body of every error response.
type Error struct {
	Error string `json:"error"`
}

// ListTasksParams defines parameters for ListTasks.
type ListTasksParams struct {
	Project *string `form:"project,omitempty" json:"project,omitempty"`
}

// GetGraphParams defines parameters for GetGraph.
type GetGraphParams struct {
	Target *[]string `form:"target,omitempty" json:"target,omitempty"`
}

// ServerInterface represents all server handlers of openapi.yaml.
type ServerInterface interface {
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// (GET /info)
	GetInfo(w http.ResponseWriter, r *http.Request)
	// (GET /tasks)
	ListTasks(w http.ResponseWriter, r *http.Request, params ListTasksParams)
	// (GET /graph)
	GetGraph(w http.ResponseWriter, r *http.Request, params GetGraphParams)
	// (POST /plan)
	PlanTasks(w http.ResponseWriter, r *http.Request)
	// (GET /runs)
	ListRuns(w http.ResponseWriter, r *http.Request)
	// (POST /runs)
	CreateRun(w http.ResponseWriter, r *http.Request)
	// (GET /runs/{runId})
	GetRun(w http.ResponseWriter, r *http.Request, runID string)
	// (DELETE /runs/{runId})
	DeleteRun(w http.ResponseWriter, r *http.Request, runID string)
}

// serverInterfaceWrapper binds request parameters before calling the handlers.
type serverInterfaceWrapper struct {
	handler ServerInterface
}

func badParam(w http.ResponseWriter, name string, err error) {
	writeError(w, http.StatusBadRequest, fmt.Errorf("invalid format for parameter %s: %w", name, err))
}

func (siw *serverInterfaceWrapper) ListTasks(w http.ResponseWriter, r *http.Request) {
	var params ListTasksParams
	if err := runtime.BindQueryParameter("form", true, false, "project", r.URL.Query(), &params.Project); err != nil {
		badParam(w, "project", err)
		return
	}
	siw.handler.ListTasks(w, r, params)
}

func (siw *serverInterfaceWrapper) GetGraph(w http.ResponseWriter, r *http.Request) {
	var params GetGraphParams
	if err := runtime.BindQueryParameter("form", true, false, "target", r.URL.Query(), &params.Target); err != nil {
		badParam(w, "target", err)
		return
	}
	siw.handler.GetGraph(w, r, params)
}

func (siw *serverInterfaceWrapper) runID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var runID string
	err := runtime.BindStyledParameterWithOptions("simple", "runId", chi.URLParam(r, "runId"), &runID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		badParam(w, "runId", err)
		return "", false
	}
	return runID, true
}

func (siw *serverInterfaceWrapper) GetRun(w http.ResponseWriter, r *http.Request) {
	if runID, ok := siw.runID(w, r); ok {
		siw.handler.GetRun(w, r, runID)
	}
}

func (siw *serverInterfaceWrapper) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if runID, ok := siw.runID(w, r); ok {
		siw.handler.DeleteRun(w, r, runID)
	}
}

// HandlerFromMux registers the API routes of si on r and returns it.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	wrapper := &serverInterfaceWrapper{handler: si}

	r.Get("/health", si.GetHealth)
	r.Get("/info", si.GetInfo)
	r.Get("/tasks", wrapper.ListTasks)
	r.Get("/graph", wrapper.GetGraph)
	r.Post("/plan", si.PlanTasks)
	r.Get("/runs", si.ListRuns)
	r.Post("/runs", si.CreateRun)
	r.Get("/runs/{runId}", wrapper.GetRun)
	r.Delete("/runs/{runId}", wrapper.DeleteRun)
	return r
}

var (
	swaggerOnce sync.Once
	swaggerDoc  *openapi3.T
	swaggerErr  error
)

// rawSpec returns the embedded OpenAPI document.
func rawSpec() ([]byte, error) {
	return openapiSpec, nil
}

// GetSwagger returns the parsed OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	swaggerOnce.Do(func() {
		loader := openapi3.NewLoader()
		swaggerDoc, swaggerErr = loader.LoadFromData(openapiSpec)
	})
	return swaggerDoc, swaggerErr
}
