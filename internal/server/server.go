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

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BrianElionDev/Loomify/internal/analyzer"
	"github.com/BrianElionDev/Loomify/internal/domain"
	"github.com/BrianElionDev/Loomify/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Repo     repo.Repo
	Analyzer *analyzer.Client
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"recording does not exist"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope for /v0 routes.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Loomify API.
func New(cfg Config) (http.Handler, error) {
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
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Loomify API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerVideos(group, cfg.Repo)
	registerEvents(group, cfg.Repo)
	registerProxy(router, cfg.Analyzer, cfg.Repo)
	registerSummaries(router, cfg.Repo)
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
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
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
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
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
    <title>Loomify API Docs</title>
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

func registerVideos(api huma.API, r repo.Repo) {
	type videoPath struct {
		ID string `path:"id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-videos",
		Method:      http.MethodGet,
		Path:        "/videos",
		Summary:     "List recordings, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Recording `json:"body"`
	}, error) {
		items, err := r.ListRecordings(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Recording{}
		}
		return &struct {
			Body []domain.Recording `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-video",
		Method:      http.MethodGet,
		Path:        "/videos/{id}",
		Summary:     "Fetch one recording",
	}, func(ctx context.Context, input *videoPath) (*struct {
		Body domain.Recording `json:"body"`
	}, error) {
		rec, err := r.GetRecording(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Recording `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-video",
		Method:      http.MethodPost,
		Path:        "/videos",
		Summary:     "Ingest a completed analysis as a new recording",
	}, func(ctx context.Context, input *struct {
		Body CreateRecordingRequest
	}) (*struct {
		Body domain.Recording `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Title) == "" {
			return nil, handleError(fmt.Errorf("title is required"))
		}
		rec := input.Body.toDomain()
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		created, err := r.InsertRecording(ctx, rec)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Recording `json:"body"`
		}{Body: created}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "replace-analysis",
		Method:      http.MethodPut,
		Path:        "/videos/{id}/analysis",
		Summary:     "Replace the whole analysis on a recording",
		Description: "Whole-field replacement, last writer wins. The response is the post-write record as the store returns it.",
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body domain.AnalysisResult
	}) (*struct {
		Body domain.Recording `json:"body"`
	}, error) {
		rec, err := r.ReplaceAnalysis(ctx, input.ID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Recording `json:"body"`
		}{Body: rec}, nil
	})
}

func registerEvents(api huma.API, r repo.Repo) {
	type eventsQuery struct {
		Limit       int    `query:"limit" default:"20"`
		Type        string `query:"type"`
		RecordingID string `query:"recording_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Tail the store mutation audit log",
	}, func(ctx context.Context, input *eventsQuery) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		items, err := r.LatestEvents(ctx, repo.EventFilters{Type: input.Type, RecordingID: input.RecordingID, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Event{}
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}
