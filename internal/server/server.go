package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"dutydesk/internal/domain"
	"dutydesk/internal/engine"
	"dutydesk/internal/repo"
	"dutydesk/internal/schedule"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"entity_not_in_scope"`
	Message string         `json:"message" example:"client is not in the viewer's scope"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"client_id\":\"c3\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the DutyDesk API.
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
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("DutyDesk API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerClients(group, cfg.Engine)
	registerAgents(group, cfg.Engine)
	registerObligations(group, cfg.Engine)
	registerMatrix(group, cfg.Engine)
	registerRoster(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerMe(group)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

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

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se engine.ScopeError
	if errors.As(err, &se) {
		return newAPIError(http.StatusForbidden, "entity_not_in_scope", err.Error(), map[string]any{"client_id": se.ClientID})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, schedule.ErrInvalidPattern) || errors.Is(err, engine.ErrInvalidDateRange) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "not applicable"):
		return newAPIError(http.StatusUnprocessableEntity, "period_not_applicable", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
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
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusUnprocessableEntity:
		return "period_not_applicable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func viewerFromRequest(ctx context.Context) (engine.Viewer, huma.StatusError) {
	p, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return engine.Viewer{}, authErr
	}
	return engine.Viewer{ActorID: p.ActorID, Role: p.Role}, nil
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
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	openPaths := map[string]bool{
		"/" + strings.TrimPrefix(path.Join(basePath, "health"), "/"):         true,
		"/" + strings.TrimPrefix(path.Join(basePath, "auth/dev/login"), "/"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if openPaths[route] {
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
    <title>DutyDesk API Docs</title>
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
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
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

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Create client",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		id := ""
		if input.Body.ID != nil {
			id = *input.Body.ID
		}
		c, err := e.CreateClient(ctx, id, input.Body.Name, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Client `json:"body"`
	}, error) {
		items, err := e.Repo.ListClients(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]domain.Client, 0, len(items))
		for _, c := range items {
			res = append(res, c)
		}
		return &struct {
			Body []domain.Client `json:"body"`
		}{Body: res}, nil
	})
}

func registerAgents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-agent",
		Method:        http.MethodPost,
		Path:          "/agents",
		Summary:       "Create agent",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateAgentRequest `json:"body"`
	}) (*struct {
		Body domain.Agent `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		id := ""
		if input.Body.ID != nil {
			id = *input.Body.ID
		}
		a, err := e.CreateAgent(ctx, id, input.Body.Name, input.Body.Role, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Agent `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-agents",
		Method:      http.MethodGet,
		Path:        "/agents",
		Summary:     "List agents",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Agent `json:"body"`
	}, error) {
		items, err := e.Repo.ListAgents(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]domain.Agent, 0, len(items))
		for _, a := range items {
			res = append(res, a)
		}
		return &struct {
			Body []domain.Agent `json:"body"`
		}{Body: res}, nil
	})
}

func registerObligations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-obligation",
		Method:        http.MethodPost,
		Path:          "/obligations",
		Summary:       "Create obligation",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateObligationRequest `json:"body"`
	}) (*struct {
		Body ObligationResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.ObligationCreateOptions{
			Title:            input.Body.Title,
			Pattern:          input.Body.Pattern,
			StartDate:        input.Body.StartDate,
			DirectClientIDs:  input.Body.ClientIDs,
			GroupAssignments: groupAssignments(input.Body.GroupAssignments),
			ActorID:          p.ActorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		o, err := e.CreateObligation(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ObligationResponse `json:"body"`
		}{Body: obligationResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-obligations",
		Method:      http.MethodGet,
		Path:        "/obligations",
		Summary:     "List obligations",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ObligationResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListObligations(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ObligationResponse `json:"body"`
		}{Body: mapObligations(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-obligation",
		Method:      http.MethodGet,
		Path:        "/obligations/{id}",
		Summary:     "Get obligation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ObligationResponse `json:"body"`
	}, error) {
		o, err := e.Repo.GetObligation(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ObligationResponse `json:"body"`
		}{Body: obligationResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-obligation",
		Method:      http.MethodPatch,
		Path:        "/obligations/{id}",
		Summary:     "Update obligation",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body UpdateObligationRequest `json:"body"`
	}) (*struct {
		Body ObligationResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.ObligationUpdateOptions{ID: input.ID, ActorID: p.ActorID}
		if input.Body.Title != nil {
			opts.Title = *input.Body.Title
		}
		if input.Body.Pattern != nil {
			opts.Pattern = *input.Body.Pattern
		}
		if input.Body.StartDate != nil {
			opts.StartDate = *input.Body.StartDate
		}
		bodyMap := rawBodyMap(ctx)
		if _, ok := bodyMap["client_ids"]; ok {
			opts.DirectClientIDs = nonNilSlice(input.Body.ClientIDs)
		}
		if _, ok := bodyMap["group_assignments"]; ok {
			opts.GroupAssignments = nonNilSlice(groupAssignments(input.Body.GroupAssignments))
		}
		o, err := e.UpdateObligation(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ObligationResponse `json:"body"`
		}{Body: obligationResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-obligation",
		Method:      http.MethodDelete,
		Path:        "/obligations/{id}",
		Summary:     "Delete obligation",
		Errors: []int{
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteObligation(ctx, input.ID, p.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "next-occurrence",
		Method:      http.MethodGet,
		Path:        "/obligations/{id}/next",
		Summary:     "Next due date",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
		On string `query:"on" format:"date"`
	}) (*struct {
		Body NextOccurrenceResponse `json:"body"`
	}, error) {
		ref := e.Now()
		if input.On != "" {
			parsed, err := time.Parse("2006-01-02", input.On)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid on date", map[string]any{"on": input.On})
			}
			ref = parsed
		}
		next, err := e.NextOccurrence(ctx, input.ID, ref)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NextOccurrenceResponse `json:"body"`
		}{Body: NextOccurrenceResponse{
			ObligationID: input.ID,
			On:           ref.Format("2006-01-02"),
			NextDue:      next.Format("2006-01-02"),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "applicable-periods",
		Method:      http.MethodGet,
		Path:        "/obligations/{id}/periods",
		Summary:     "Applicable periods",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID      string `path:"id"`
		Back    int    `query:"back"`
		Forward int    `query:"forward"`
		Anchor  string `query:"anchor"`
	}) (*struct {
		Body []PeriodResponse `json:"body"`
	}, error) {
		w := engine.PeriodWindow{MonthsBack: input.Back, MonthsForward: input.Forward}
		if input.Anchor != "" {
			parsed, err := schedule.ParsePeriodKey(input.Anchor)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid anchor period", map[string]any{"anchor": input.Anchor})
			}
			w.Anchor = parsed
		}
		periods, err := e.ApplicablePeriods(ctx, input.ID, w)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []PeriodResponse `json:"body"`
		}{Body: periodResponses(periods)}, nil
	})
}

func registerMatrix(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-matrix",
		Method:      http.MethodGet,
		Path:        "/obligations/{id}/matrix",
		Summary:     "Completion matrix",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID      string `path:"id"`
		Back    int    `query:"back"`
		Forward int    `query:"forward"`
		Anchor  string `query:"anchor"`
	}) (*struct {
		Body MatrixResponse `json:"body"`
	}, error) {
		viewer, authErr := viewerFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w := engine.PeriodWindow{MonthsBack: input.Back, MonthsForward: input.Forward}
		if input.Anchor != "" {
			parsed, err := schedule.ParsePeriodKey(input.Anchor)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid anchor period", map[string]any{"anchor": input.Anchor})
			}
			w.Anchor = parsed
		}
		m, err := e.CompletionMatrix(ctx, input.ID, viewer, w)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MatrixResponse `json:"body"`
		}{Body: matrixResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-completion",
		Method:      http.MethodPut,
		Path:        "/obligations/{id}/matrix/{client_id}/{period}",
		Summary:     "Toggle completion cell",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID       string            `path:"id"`
		ClientID string            `path:"client_id"`
		Period   string            `path:"period"`
		Body     ToggleCellRequest `json:"body"`
	}) (*struct {
		Body domain.CompletionCell `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		viewer, authErr := viewerFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cell, err := e.ToggleCompletion(ctx, input.ID, input.ClientID, input.Period, input.Body.Done, viewer)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CompletionCell `json:"body"`
		}{Body: cell}, nil
	})
}

func registerRoster(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-roster-entry",
		Method:        http.MethodPost,
		Path:          "/roster/entries",
		Summary:       "Create roster entry",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateScheduleEntryRequest `json:"body"`
	}) (*struct {
		Body domain.ScheduleEntry `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.ScheduleEntryCreateOptions{
			AgentID: input.Body.AgentID,
			Label:   input.Body.Label,
			Kind:    input.Body.Kind,
			StartAt: input.Body.StartAt,
			EndAt:   input.Body.EndAt,
			ActorID: p.ActorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		if input.Body.ClientID != nil {
			opts.ClientID = *input.Body.ClientID
		}
		entry, err := e.CreateScheduleEntry(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ScheduleEntry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "monthly-roster",
		Method:      http.MethodGet,
		Path:        "/roster/{year}/{month}",
		Summary:     "Monthly roster",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Year  int `path:"year" minimum:"1970" maximum:"9999"`
		Month int `path:"month" minimum:"1" maximum:"12"`
	}) (*struct {
		Body []RosterEntryResponse `json:"body"`
	}, error) {
		entries, err := e.MonthlyRoster(ctx, input.Year, time.Month(input.Month))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []RosterEntryResponse `json:"body"`
		}{Body: rosterEntryResponses(entries)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "monthly-workload",
		Method:      http.MethodGet,
		Path:        "/roster/{year}/{month}/workload",
		Summary:     "Daily workload severity counts",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Year  int `path:"year" minimum:"1970" maximum:"9999"`
		Month int `path:"month" minimum:"1" maximum:"12"`
	}) (*struct {
		Body []WorkloadDayResponse `json:"body"`
	}, error) {
		counts, err := e.DailyWorkload(ctx, input.Year, time.Month(input.Month))
		if err != nil {
			return nil, handleError(err)
		}
		days := schedule.DaysInMonth(input.Year, time.Month(input.Month))
		res := make([]WorkloadDayResponse, 0, days)
		for day := 1; day <= days; day++ {
			c := counts[day]
			res = append(res, WorkloadDayResponse{Day: day, Long: c.Long, Short: c.Short, None: c.None})
		}
		return &struct {
			Body []WorkloadDayResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:",client,agent,obligation,schedule_entry"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		items, err := e.Repo.LatestEvents(ctx, limit, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]EventResponse, 0, len(items))
		for _, evt := range items {
			res = append(res, eventResponse(evt))
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{
			ActorID: principal.ActorID,
			Role:    principal.Role,
			Source:  principal.Source,
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, strings.TrimSpace(input.Body.Role))
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func rawBodyMap(ctx context.Context) map[string]json.RawMessage {
	data := bodyBytes(ctx)
	if len(data) == 0 {
		return map[string]json.RawMessage{}
	}
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return map[string]json.RawMessage{}
	}
	if inner, ok := outer["body"]; ok {
		var innerMap map[string]json.RawMessage
		if err := json.Unmarshal(inner, &innerMap); err == nil {
			return innerMap
		}
	}
	return outer
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
