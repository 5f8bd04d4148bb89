package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BrianElionDev/Loomify/internal/analyzer"
	"github.com/BrianElionDev/Loomify/internal/domain"
	"github.com/BrianElionDev/Loomify/internal/repo"
)

// registerProxy exposes the passthrough forwarder. It lives outside the /v0
// envelope because its response shapes are part of the external contract.
func registerProxy(router chi.Router, a *analyzer.Client, r repo.Repo) {
	router.Post("/api/loom-proxy", func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"error": fmt.Sprintf("Failed to proxy request: %v", rec),
				})
			}
		}()

		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid or missing loom_url in request"})
			return
		}
		loomURL, ok := body["loom_url"].(string)
		if !ok || loomURL == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid or missing loom_url in request"})
			return
		}
		recordingType, _ := body["recording_type"].(string)

		out, err := a.Submit(req.Context(), loomURL, recordingType)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error": fmt.Sprintf("Fetch operation failed: %v", err),
			})
			return
		}
		switch out.Status {
		case analyzer.StatusFailed:
			writeJSON(w, out.Code, map[string]any{
				"error": fmt.Sprintf("Error: %d - %s", out.Code, out.Message),
			})
		case analyzer.StatusProcessing:
			writeJSON(w, http.StatusOK, map[string]any{"status": "processing", "message": out.Message})
		case analyzer.StatusPlainText:
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": out.Message})
		default:
			// Completed: store the result when it carries an analysis, then
			// pass the upstream JSON through verbatim. Ingest is best-effort;
			// the response contract is passthrough.
			ingestCompleted(req, r, out.Body)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(out.Body)
		}
	})
}

// registerSummaries exposes the summaries read endpoint, also outside the /v0
// envelope for the same reason.
func registerSummaries(router chi.Router, r repo.Repo) {
	router.Get("/api/summaries", func(w http.ResponseWriter, req *http.Request) {
		items, err := r.ListSummaries(req.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to fetch meeting summaries"})
			return
		}
		if items == nil {
			items = []domain.Summary{}
		}
		writeJSON(w, http.StatusOK, items)
	})
}

func ingestCompleted(req *http.Request, r repo.Repo, raw json.RawMessage) {
	var payload CreateRecordingRequest
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	if payload.Title == "" && len(payload.Analysis.Developers) == 0 {
		return
	}
	rec := payload.toDomain()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, _ = r.InsertRecording(req.Context(), rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
