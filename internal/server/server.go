package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"workplace/internal/composer"
	"workplace/internal/domain"
	"workplace/internal/journal"
	"workplace/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Store    *store.Store
	Journal  *journal.Journal
	BasePath string
	Logger   *zap.Logger
	// Operator is the actor recorded for human entries posted without one.
	Operator string
	// WriteRate caps mutating requests per second; zero disables the limit.
	WriteRate  float64
	WriteBurst int
}

// ErrStageBoundary is returned when a task cannot move past the first or
// last stage.
var ErrStageBoundary = errors.New("no stage in that direction")

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task task-123456: not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the workplace API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Journal == nil {
		return nil, fmt.Errorf("journal is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Operator == "" {
		cfg.Operator = "Operator"
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors are 400 bad_request; 422 is
			// reserved for composer rules.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(cfg.Logger))
	router.Use(middleware.Recoverer)
	if cfg.WriteRate > 0 {
		burst := cfg.WriteBurst
		if burst < 1 {
			burst = 1
		}
		router.Use(writeLimiter(cfg.WriteRate, burst))
	}
	hcfg := huma.DefaultConfig("Workplace API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerState(group, cfg.Store)
	registerModels(group, cfg.Store)
	registerTasks(group, cfg.Store)
	registerAutomations(group, cfg.Store)
	registerActivity(group, cfg)
	registerStream(group, cfg.Store)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				}
				if ww.Status() >= http.StatusInternalServerError {
					log.Error("request", fields...)
					return
				}
				log.Info("request", fields...)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, composer.ErrTitleTooShort):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", msg, map[string]any{"field": "title", "min_length": composer.MinTitleLength})
	case errors.Is(err, composer.ErrObjectiveTooShort):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", msg, map[string]any{"field": "objective", "min_length": composer.MinObjectiveLength})
	case errors.Is(err, journal.ErrInvalidCursor):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case errors.Is(err, ErrStageBoundary):
		return newAPIError(http.StatusConflict, "stage_boundary", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
		err  error
	)
	docPath := path.Join(basePath, "openapi.json")
	r.Get(docPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			doc, err = json.Marshal(oas)
		})
		if err != nil {
			writeError(w, handleError(fmt.Errorf("render openapi: %w", err)))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Workplace API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerState(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/state",
		Summary:     "Full workspace snapshot",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StateResponse `json:"body"`
	}, error) {
		return &struct {
			Body StateResponse `json:"body"`
		}{Body: stateResponse(s.Snapshot())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-metrics",
		Method:      http.MethodGet,
		Path:        "/metrics",
		Summary:     "Workspace header metrics",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MetricsResponse `json:"body"`
	}, error) {
		return &struct {
			Body MetricsResponse `json:"body"`
		}{Body: metricsResponse(s.Snapshot())}, nil
	})
}

func registerModels(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-models",
		Method:      http.MethodGet,
		Path:        "/models",
		Summary:     "List models",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ModelResponse `json:"body"`
	}, error) {
		return &struct {
			Body []ModelResponse `json:"body"`
		}{Body: mapModels(s.Snapshot())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-model",
		Method:      http.MethodPatch,
		Path:        "/models/{id}",
		Summary:     "Update model status and load",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateModelRequest
	}) (*struct {
		Body ModelResponse `json:"body"`
	}, error) {
		patch := store.ModelPatch{Load: input.Body.Load}
		if input.Body.Status != nil {
			status := domain.ModelStatus(*input.Body.Status)
			patch.Status = &status
		}
		m, ok := s.UpdateModel(input.ID, patch)
		if !ok {
			return nil, handleError(notFound("model", input.ID))
		}
		return &struct {
			Body ModelResponse `json:"body"`
		}{Body: modelResponse(m, s.Snapshot().AssignedCounts())}, nil
	})
}

type taskPath struct {
	ID string `path:"id"`
}

type taskOutput struct {
	Body TaskResponse `json:"body"`
}

func taskResult(s *store.Store, t domain.Task) *taskOutput {
	return &taskOutput{Body: taskResponse(s.Snapshot(), t)}
}

func registerTasks(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Stage string `query:"stage" enum:"intake,research,execution,review,complete"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		snap := s.Snapshot()
		tasks := snap.Tasks
		if input.Stage != "" {
			tasks = snap.TasksByStage()[domain.Stage(input.Stage)]
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(snap, tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest
	}) (*taskOutput, error) {
		d := composer.NewDraft()
		d.Title = input.Body.Title
		d.Objective = input.Body.Objective
		if input.Body.Priority != "" {
			d.Priority = domain.Priority(input.Body.Priority)
		}
		if input.Body.Stage != "" {
			d.Stage = domain.Stage(input.Body.Stage)
		}
		d.AssignedModelID = input.Body.AssignedModelID
		d.DueAt = input.Body.DueAt
		d.Tags = input.Body.Tags
		d.TagsInput = input.Body.TagsInput
		d.Blockers = input.Body.Blockers
		t, err := composer.Submit(s, d)
		if err != nil {
			return nil, handleError(err)
		}
		return taskResult(s, t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*taskOutput, error) {
		t, ok := s.Task(input.ID)
		if !ok {
			return nil, handleError(notFound("task", input.ID))
		}
		return taskResult(s, t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-stage",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}/stage",
		Summary:     "Move task to a stage",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body SetStageRequest
	}) (*taskOutput, error) {
		t, ok := s.UpdateTaskStage(input.ID, domain.Stage(input.Body.Stage))
		if !ok {
			return nil, handleError(notFound("task", input.ID))
		}
		return taskResult(s, t), nil
	})

	step := func(id, summary string, next func(domain.Stage) (domain.Stage, bool)) {
		huma.Register(api, huma.Operation{
			OperationID: id + "-task",
			Method:      http.MethodPost,
			Path:        "/tasks/{id}/" + id,
			Summary:     summary,
			Errors:      []int{http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *taskPath) (*taskOutput, error) {
			current, ok := s.Task(input.ID)
			if !ok {
				return nil, handleError(notFound("task", input.ID))
			}
			stage, ok := next(current.Stage)
			if !ok {
				return nil, handleError(fmt.Errorf("task %s at %s: %w", input.ID, current.Stage, ErrStageBoundary))
			}
			t, ok := s.UpdateTaskStage(input.ID, stage)
			if !ok {
				return nil, handleError(notFound("task", input.ID))
			}
			return taskResult(s, t), nil
		})
	}
	step("advance", "Move task to the next stage", domain.NextStage)
	step("back", "Move task to the previous stage", domain.PrevStage)

	huma.Register(api, huma.Operation{
		OperationID: "assign-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}/assignee",
		Summary:     "Assign task to a model",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AssignRequest
	}) (*taskOutput, error) {
		t, ok := s.AssignTask(input.ID, strings.TrimSpace(input.Body.ModelID))
		if !ok {
			return nil, handleError(notFound("task", input.ID))
		}
		return taskResult(s, t), nil
	})
}

func registerAutomations(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-automations",
		Method:      http.MethodGet,
		Path:        "/automations",
		Summary:     "List automations",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []AutomationResponse `json:"body"`
	}, error) {
		return &struct {
			Body []AutomationResponse `json:"body"`
		}{Body: mapAutomations(s.Automations())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-automation",
		Method:      http.MethodPost,
		Path:        "/automations/{id}/toggle",
		Summary:     "Pause or reactivate an automation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body AutomationResponse `json:"body"`
	}, error) {
		a, ok := s.ToggleAutomation(input.ID)
		if !ok {
			return nil, handleError(notFound("automation", input.ID))
		}
		return &struct {
			Body AutomationResponse `json:"body"`
		}{Body: automationResponse(a)}, nil
	})
}

func registerActivity(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "List activity, most recent first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Channel string `query:"channel" enum:"system,model,human"`
		TaskID  string `query:"task_id"`
		Actor   string `query:"actor"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedActivity `json:"body"`
	}, error) {
		page, err := cfg.Journal.Query(ctx, journal.Filter{
			Channel: domain.Channel(input.Channel),
			TaskID:  input.TaskID,
			Actor:   input.Actor,
			Limit:   input.Limit,
			Cursor:  input.Cursor,
		})
		if err != nil {
			if errors.Is(err, journal.ErrInvalidCursor) {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			return nil, handleError(err)
		}
		return &struct {
			Body paginatedActivity `json:"body"`
		}{Body: activityPage(page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "log-event",
		Method:        http.MethodPost,
		Path:          "/activity",
		Summary:       "Append an activity entry",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body LogEventRequest
	}) (*struct {
		Body ActivityResponse `json:"body"`
	}, error) {
		in := store.EntryInput{
			Actor:   input.Body.Actor,
			Message: input.Body.Message,
			Channel: domain.Channel(input.Body.Channel),
			TaskID:  input.Body.TaskID,
		}
		if in.Channel == "" {
			in.Channel = domain.ChannelHuman
		}
		if in.Actor == "" {
			in.Actor = cfg.Operator
		}
		e := cfg.Store.LogEvent(in)
		return &struct {
			Body ActivityResponse `json:"body"`
		}{Body: activityResponse(e)}, nil
	})
}

// parseSlices maps a comma-separated list of collection names to a Slice.
// Unknown names are ignored; an empty selection watches everything.
func parseSlices(raw string) store.Slice {
	var sel store.Slice
	for _, name := range strings.Split(raw, ",") {
		switch strings.TrimSpace(name) {
		case "models":
			sel |= store.SliceModels
		case "tasks":
			sel |= store.SliceTasks
		case "automations":
			sel |= store.SliceAutomations
		case "activity":
			sel |= store.SliceActivity
		}
	}
	if sel == 0 {
		sel = store.AllSlices
	}
	return sel
}

func registerStream(api huma.API, s *store.Store) {
	sse.Register(api, huma.Operation{
		OperationID: "stream",
		Method:      http.MethodGet,
		Path:        "/stream",
		Summary:     "Stream a snapshot on every change",
	}, map[string]any{
		"snapshot": SnapshotEvent{},
	}, func(ctx context.Context, input *struct {
		Slices string `query:"slices" doc:"Comma-separated collections to watch: models,tasks,automations,activity"`
	}, send sse.Sender) {
		for snap := range s.Watch(ctx, parseSlices(input.Slices)) {
			if err := send.Data(SnapshotEvent(stateResponse(snap))); err != nil {
				return
			}
		}
	})
}
