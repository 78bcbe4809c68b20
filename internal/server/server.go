// Package server exposes the review workflow over HTTP with a password login
// and bearer-token sessions.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"catreview/internal/app"
	"catreview/internal/domain"
	"catreview/internal/prep"
	"catreview/internal/seed"
)

// Config for the HTTP API handler.
type Config struct {
	App      *app.App
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"cannot proceed to step 3"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Category Review API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Category Review API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerLogin(group, cfg.Auth)
	registerStatus(group, cfg.App)
	registerPreparation(group, cfg.App.Store)
	registerSteps(group, cfg.App.Store)
	registerLevers(group, cfg.App.Store)
	registerInitiatives(group, cfg.App.Store)
	registerCatalog(group, cfg.App)
	registerSeed(group, cfg.App.Store)
	registerEvents(group, cfg.App)
	registerExport(group, cfg.App)
	registerOpenAPI(router, api, basePath)
	startWebhookDispatcher(cfg.App)

	return router, nil
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

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
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

func registerLogin(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange the dashboard password for a session token",
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		if subtle.ConstantTimeCompare([]byte(input.Body.Password), []byte(authCfg.Password)) != 1 {
			return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid password", nil)
		}
		token, expires, err := mintToken(authCfg, time.Now())
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, ExpiresAt: expires.UTC().Format(time.RFC3339)}}, nil
	})
}

func registerStatus(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Workflow status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatusResponse `json:"body"`
	}, error) {
		s := a.Store
		return &struct {
			Body StatusResponse `json:"body"`
		}{Body: StatusResponse{
			Category:      a.Config.Category.Name,
			CurrentStepID: s.CurrentStepID(),
			StartDate:     s.StartDate(),
			Initiatives:   len(s.Initiatives()),
			TotalRevenue:  s.TotalRevenue(),
			TotalMargin:   s.TotalMargin(),
		}}, nil
	})
}

func registerPreparation(api huma.API, store *prep.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "get-preparation",
		Method:      http.MethodGet,
		Path:        "/preparation",
		Summary:     "Full workflow state",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PreparationResponse `json:"body"`
	}, error) {
		steps := store.Steps()
		out := PreparationResponse{
			Steps:         make([]StepResponse, 0, len(steps)),
			CurrentStepID: store.CurrentStepID(),
			StartDate:     store.StartDate(),
			Initiatives:   []InitiativeResponse{},
			TotalRevenue:  store.TotalRevenue(),
			TotalMargin:   store.TotalMargin(),
		}
		for _, step := range steps {
			out.Steps = append(out.Steps, stepResponse(store, step))
		}
		for _, init := range store.Initiatives() {
			out.Initiatives = append(out.Initiatives, initiativeResponse(store, init))
		}
		return &struct {
			Body PreparationResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerSteps(api huma.API, store *prep.Store) {
	type stepPath struct {
		StepID int `path:"step_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-steps",
		Method:      http.MethodGet,
		Path:        "/steps",
		Summary:     "List wizard steps",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []StepResponse `json:"body"`
	}, error) {
		steps := store.Steps()
		out := make([]StepResponse, 0, len(steps))
		for _, step := range steps {
			out = append(out, stepResponse(store, step))
		}
		return &struct {
			Body []StepResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-step",
		Method:      http.MethodGet,
		Path:        "/steps/{step_id}",
		Summary:     "Get one step",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *stepPath) (*struct {
		Body StepResponse `json:"body"`
	}, error) {
		step, ok := store.StepByID(input.StepID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("step %d not found", input.StepID), nil)
		}
		return &struct {
			Body StepResponse `json:"body"`
		}{Body: stepResponse(store, step)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-current-step",
		Method:      http.MethodPut,
		Path:        "/current-step",
		Summary:     "Move the wizard to another step",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body SetCurrentStepRequest `json:"body"`
	}) (*struct {
		Body StepResponse `json:"body"`
	}, error) {
		step, ok := store.StepByID(input.Body.StepID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("step %d not found", input.Body.StepID), nil)
		}
		if !store.CanProceedToStep(input.Body.StepID) {
			return nil, newAPIError(http.StatusUnprocessableEntity, "validation_failed",
				fmt.Sprintf("cannot proceed to step %d", input.Body.StepID),
				map[string]any{"current_step_id": store.CurrentStepID()})
		}
		store.SetCurrentStep(ctx, input.Body.StepID)
		step, _ = store.StepByID(input.Body.StepID)
		return &struct {
			Body StepResponse `json:"body"`
		}{Body: stepResponse(store, step)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-step",
		Method:      http.MethodPost,
		Path:        "/steps/{step_id}/complete",
		Summary:     "Mark a step completed",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *stepPath) (*struct {
		Body StepResponse `json:"body"`
	}, error) {
		if _, ok := store.StepByID(input.StepID); !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("step %d not found", input.StepID), nil)
		}
		store.CompleteStep(ctx, input.StepID)
		step, _ := store.StepByID(input.StepID)
		return &struct {
			Body StepResponse `json:"body"`
		}{Body: stepResponse(store, step)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "skip-step",
		Method:      http.MethodPost,
		Path:        "/steps/{step_id}/skip",
		Summary:     "Mark a step skipped",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *stepPath) (*struct {
		Body StepResponse `json:"body"`
	}, error) {
		if _, ok := store.StepByID(input.StepID); !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("step %d not found", input.StepID), nil)
		}
		store.SkipStep(ctx, input.StepID)
		step, _ := store.StepByID(input.StepID)
		return &struct {
			Body StepResponse `json:"body"`
		}{Body: stepResponse(store, step)}, nil
	})
}

func registerLevers(api huma.API, store *prep.Store) {
	type LeverPath struct {
		StepID int    `path:"step_id"`
		Lever  string `path:"lever"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "mark-lever-viewed",
		Method:      http.MethodPost,
		Path:        "/steps/{step_id}/levers/{lever}/viewed",
		Summary:     "Mark a lever viewed",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *LeverPath) (*struct {
		Body StepResponse `json:"body"`
	}, error) {
		if _, ok := store.StepByID(input.StepID); !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("step %d not found", input.StepID), nil)
		}
		store.MarkLeverViewed(ctx, input.StepID, input.Lever)
		step, _ := store.StepByID(input.StepID)
		return &struct {
			Body StepResponse `json:"body"`
		}{Body: stepResponse(store, step)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-lever-traffic-light",
		Method:      http.MethodPut,
		Path:        "/steps/{step_id}/levers/{lever}/traffic-light",
		Summary:     "Set a lever traffic light",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LeverPath
		Body TrafficLightRequest `json:"body"`
	}) (*struct {
		Body StepResponse `json:"body"`
	}, error) {
		if _, ok := store.StepByID(input.StepID); !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("step %d not found", input.StepID), nil)
		}
		store.SetLeverTrafficLight(ctx, input.StepID, input.Lever, domain.TrafficLight(input.Body.Light))
		step, _ := store.StepByID(input.StepID)
		return &struct {
			Body StepResponse `json:"body"`
		}{Body: stepResponse(store, step)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-lever-insights",
		Method:      http.MethodPut,
		Path:        "/steps/{step_id}/levers/{lever}/insights",
		Summary:     "Set lever insight notes",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LeverPath
		Body InsightsRequest `json:"body"`
	}) (*struct {
		Body StepResponse `json:"body"`
	}, error) {
		if _, ok := store.StepByID(input.StepID); !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("step %d not found", input.StepID), nil)
		}
		store.SetLeverInsights(ctx, input.StepID, input.Lever, input.Body.Insights)
		step, _ := store.StepByID(input.StepID)
		return &struct {
			Body StepResponse `json:"body"`
		}{Body: stepResponse(store, step)}, nil
	})
}

func registerInitiatives(api huma.API, store *prep.Store) {
	type InitiativePath struct {
		InitiativeID int `path:"initiative_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-initiatives",
		Method:      http.MethodGet,
		Path:        "/initiatives",
		Summary:     "List initiatives",
	}, func(ctx context.Context, input *struct {
		StepID int `query:"step_id"`
	}) (*struct {
		Body []InitiativeResponse `json:"body"`
	}, error) {
		var items []domain.Initiative
		if input.StepID > 0 {
			items = store.InitiativesForStep(input.StepID)
		} else {
			items = store.Initiatives()
		}
		out := make([]InitiativeResponse, 0, len(items))
		for _, init := range items {
			out = append(out, initiativeResponse(store, init))
		}
		return &struct {
			Body []InitiativeResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-initiative",
		Method:        http.MethodPost,
		Path:          "/steps/{step_id}/initiatives",
		Summary:       "Attach an initiative to a step",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StepID int                     `path:"step_id"`
		Body   CreateInitiativeRequest `json:"body"`
	}) (*struct {
		Body InitiativeResponse `json:"body"`
	}, error) {
		if _, ok := store.StepByID(input.StepID); !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("step %d not found", input.StepID), nil)
		}
		if strings.TrimSpace(input.Body.Description) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "description is required", nil)
		}
		status := domain.InitiativeStatus(input.Body.Status)
		if status == "" {
			status = domain.StatusNew
		}
		init := domain.Initiative{
			Description:          input.Body.Description,
			ReportID:             input.Body.ReportID,
			Status:               status,
			RevenueImpactMillion: input.Body.RevenueImpactMillion,
			MarginImpactMillion:  input.Body.MarginImpactMillion,
			StartDate:            input.Body.StartDate,
			ImpactStartDate:      input.Body.ImpactStartDate,
			ImpactCheckDate:      input.Body.ImpactCheckDate,
			Assignee:             input.Body.Assignee,
			ParentID:             input.Body.ParentID,
			SKUDetails:           input.Body.SKUDetails,
		}
		id := store.AddInitiative(ctx, input.StepID, init)
		created, _ := store.InitiativeByID(id)
		return &struct {
			Body InitiativeResponse `json:"body"`
		}{Body: initiativeResponse(store, created)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-initiative",
		Method:      http.MethodGet,
		Path:        "/initiatives/{initiative_id}",
		Summary:     "Get one initiative with its subtasks and detail score",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *InitiativePath) (*struct {
		Body InitiativeDetailResponse `json:"body"`
	}, error) {
		init, ok := store.InitiativeByID(input.InitiativeID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("initiative %d not found", input.InitiativeID), nil)
		}
		score := prep.DetailScore(init, store.Initiatives())
		return &struct {
			Body InitiativeDetailResponse `json:"body"`
		}{Body: InitiativeDetailResponse{
			InitiativeResponse: initiativeResponse(store, init),
			Subtasks:           store.Subtasks(init.ID),
			Score:              score,
			Label:              prep.ScoreLabel(score.Score),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-initiative",
		Method:      http.MethodPatch,
		Path:        "/initiatives/{initiative_id}",
		Summary:     "Patch an initiative",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InitiativePath
		Body UpdateInitiativeRequest `json:"body"`
	}) (*struct {
		Body InitiativeResponse `json:"body"`
	}, error) {
		if _, ok := store.InitiativeByID(input.InitiativeID); !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("initiative %d not found", input.InitiativeID), nil)
		}
		upd := prep.InitiativeUpdate{
			Description:          input.Body.Description,
			ReportID:             input.Body.ReportID,
			RevenueImpactMillion: input.Body.RevenueImpactMillion,
			MarginImpactMillion:  input.Body.MarginImpactMillion,
			StartDate:            input.Body.StartDate,
			ImpactStartDate:      input.Body.ImpactStartDate,
			ImpactCheckDate:      input.Body.ImpactCheckDate,
			Assignee:             input.Body.Assignee,
			SKUDetails:           input.Body.SKUDetails,
			StepID:               input.Body.StepID,
		}
		if input.Body.Status != nil {
			status := domain.InitiativeStatus(*input.Body.Status)
			upd.Status = &status
		}
		store.UpdateInitiative(ctx, input.InitiativeID, upd)
		updated, _ := store.InitiativeByID(input.InitiativeID)
		return &struct {
			Body InitiativeResponse `json:"body"`
		}{Body: initiativeResponse(store, updated)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-initiative",
		Method:        http.MethodDelete,
		Path:          "/initiatives/{initiative_id}",
		Summary:       "Delete an initiative and its subtasks",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *InitiativePath) (*struct{}, error) {
		store.RemoveInitiative(ctx, input.InitiativeID)
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-workflow",
		Method:      http.MethodPost,
		Path:        "/reset",
		Summary:     "Discard all workflow state",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatusResponse `json:"body"`
	}, error) {
		store.ResetPreparation(ctx)
		return &struct {
			Body StatusResponse `json:"body"`
		}{Body: StatusResponse{
			CurrentStepID: store.CurrentStepID(),
			StartDate:     store.StartDate(),
		}}, nil
	})
}

func registerCatalog(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "catalog-matrix",
		Method:      http.MethodGet,
		Path:        "/catalog/matrix",
		Summary:     "Report matrix with per-cell statistics",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Levers []string       `json:"levers"`
			Stages []string       `json:"stages"`
			Cells  []CellResponse `json:"cells"`
		} `json:"body"`
	}, error) {
		out := &struct {
			Body struct {
				Levers []string       `json:"levers"`
				Stages []string       `json:"stages"`
				Cells  []CellResponse `json:"cells"`
			} `json:"body"`
		}{}
		out.Body.Levers = a.Catalog.Levers()
		out.Body.Stages = a.Catalog.Stages()
		for _, cell := range a.Catalog.AllCells() {
			out.Body.Cells = append(out.Body.Cells, CellResponse{
				MatrixCell:   cell,
				DerivedLight: a.Catalog.TrafficLightForLever(cell.Lever, cell.Stage),
			})
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "catalog-cell",
		Method:      http.MethodGet,
		Path:        "/catalog/cell",
		Summary:     "Resolve one matrix cell",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Lever string `query:"lever" required:"true"`
		Stage string `query:"stage" required:"true"`
	}) (*struct {
		Body CellResponse `json:"body"`
	}, error) {
		cell, ok := a.Catalog.Cell(input.Lever, input.Stage)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "cell not found", nil)
		}
		return &struct {
			Body CellResponse `json:"body"`
		}{Body: CellResponse{
			MatrixCell:   cell,
			DerivedLight: a.Catalog.TrafficLightForLever(input.Lever, input.Stage),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "catalog-report",
		Method:      http.MethodGet,
		Path:        "/catalog/reports/{report_id}",
		Summary:     "Resolve a report id to its name and analysis step",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ReportID string `path:"report_id"`
	}) (*struct {
		Body ReportLookupResponse `json:"body"`
	}, error) {
		stepID, ok := a.Catalog.StepForReport(input.ReportID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("report %s not found", input.ReportID), nil)
		}
		return &struct {
			Body ReportLookupResponse `json:"body"`
		}{Body: ReportLookupResponse{
			ID:     input.ReportID,
			Title:  a.Catalog.ReportName(input.ReportID),
			StepID: stepID,
		}}, nil
	})
}

func registerSeed(api huma.API, store *prep.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "seed-workflow",
		Method:      http.MethodPost,
		Path:        "/seed",
		Summary:     "Merge the bundled fixture into the workflow",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body seed.Stats `json:"body"`
	}, error) {
		tasks, err := seed.Tasks()
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		store.SeedFromTasks(ctx, tasks)
		return &struct {
			Body seed.Stats `json:"body"`
		}{Body: seed.Summarize(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "seed-stats",
		Method:      http.MethodGet,
		Path:        "/seed/stats",
		Summary:     "Bundled fixture statistics",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*struct {
		Body seed.Stats `json:"body"`
	}, error) {
		tasks, err := seed.Tasks()
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body seed.Stats `json:"body"`
		}{Body: seed.Summarize(seed.Filter(tasks, input.Status))}, nil
	})
}

func registerEvents(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Recent workflow events",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" maximum:"500"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		items, err := a.Events.Recent(ctx, input.Limit)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	open := map[string]bool{
		path.Join(basePath, "health"):     true,
		path.Join(basePath, "auth/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
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
    <title>Category Review API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.onload = () => {
        window.ui = SwaggerUIBundle({ url: %q, dom_id: "#swagger-ui" });
      };
    </script>
  </body>
</html>`, specURL)
}
