package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/BrianElionDev/Loomify/internal/analyzer"
	"github.com/BrianElionDev/Loomify/internal/db"
	"github.com/BrianElionDev/Loomify/internal/domain"
	"github.com/BrianElionDev/Loomify/internal/migrate"
	"github.com/BrianElionDev/Loomify/internal/repo"
)

type testServer struct {
	URL    string
	Repo   repo.Repo
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T, a *analyzer.Client) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	handler, err := New(Config{Repo: r, Analyzer: a, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Repo:   r,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func sampleCreateBody(id string) map[string]any {
	return map[string]any{
		"id":    id,
		"title": "Sprint review",
		"link":  "https://www.loom.com/share/" + id,
		"llm_answer": map[string]any{
			"project": "atlas",
			"developers": []map[string]any{
				{"dev": "Alice", "tasks": []map[string]any{
					{"task": "Fix login", "timestamp": "00:12", "completed": false},
					{"task": "Write docs", "timestamp": "03:40", "completed": true},
				}},
			},
		},
	}
}

func TestCreateAndListVideos(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/videos", sampleCreateBody("rec-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Recording
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}
	if created.ID != "rec-1" || created.CreatedAt == "" {
		t.Fatalf("unexpected created recording: %+v", created)
	}
	if len(created.Analysis.Developers) != 1 || created.Analysis.Developers[0].Name != "Alice" {
		t.Fatalf("analysis not persisted: %+v", created.Analysis)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/videos", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var listed []domain.Recording
	if err := json.Unmarshal(data, &listed); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "rec-1" {
		t.Fatalf("unexpected list: %+v", listed)
	}
}

func TestCreateVideoRequiresTitle(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	body := sampleCreateBody("rec-1")
	body["title"] = "  "
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/videos", body)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "bad_request" {
		t.Fatalf("expected bad_request code, got %q", envelope.Error.Code)
	}
}

func TestGetVideoNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/videos/nope", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("expected not_found code, got %q", envelope.Error.Code)
	}
}

func TestReplaceAnalysisWholeField(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/videos", sampleCreateBody("rec-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}

	replacement := map[string]any{
		"project": "atlas",
		"developers": []map[string]any{
			{"dev": "Bob", "tasks": []map[string]any{
				{"task": "Review PR", "timestamp": "01:05", "completed": false},
			}},
		},
	}
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/videos/rec-1/analysis", replacement)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("replace status %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Recording
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal updated: %v", err)
	}
	// whole-field replacement: Alice's developers entry is gone entirely
	if len(updated.Analysis.Developers) != 1 || updated.Analysis.Developers[0].Name != "Bob" {
		t.Fatalf("expected replacement to overwrite the field: %+v", updated.Analysis)
	}
	if updated.UpdatedAt == "" {
		t.Fatal("expected updated_at to be set")
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/videos/missing/analysis", replacement)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing recording, got %d: %s", res.StatusCode, string(data))
	}
}

func TestEventsAuditLog(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	doJSON(t, client, http.MethodPost, srv.URL+"/v0/videos", sampleCreateBody("rec-1"))
	doJSON(t, client, http.MethodPut, srv.URL+"/v0/videos/rec-1/analysis", map[string]any{
		"developers": []map[string]any{},
	})

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?recording_id=rec-1", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var evts []domain.Event
	if err := json.Unmarshal(data, &evts); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(evts), evts)
	}
	// newest first
	if evts[0].Type != "analysis.replaced" || evts[1].Type != "recording.ingested" {
		t.Fatalf("unexpected event order: %+v", evts)
	}
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}
