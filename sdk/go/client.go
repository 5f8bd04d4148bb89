package loomifysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Loomify HTTP API client. It is the remote data gateway
// for every consumer: reads and task writes go through /v0, submissions go
// through the passthrough forwarder.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ErrNotFound marks a lookup for an id the store does not know.
var ErrNotFound = errors.New("not found")

// APIError wraps non-2xx responses from the store.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Submission is the tagged outcome of a forwarded analysis request. Status is
// "processing" when the upstream deferred the work, "success" when it replied
// with unstructured text, and "completed" when Raw holds a real result.
type Submission struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// FetchAll returns every recording, newest first. No partial results.
func (c *Client) FetchAll(ctx context.Context) ([]Recording, error) {
	var resp []Recording
	err := c.do(ctx, http.MethodGet, "v0/videos", nil, &resp)
	return resp, err
}

// FetchOne returns a single recording, ErrNotFound when the id is unknown.
func (c *Client) FetchOne(ctx context.Context, id string) (Recording, error) {
	var resp Recording
	err := c.do(ctx, http.MethodGet, "v0/videos/"+url.PathEscape(id), nil, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return resp, fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	return resp, err
}

// ReplaceAnalysis overwrites the whole analysis on the named recording and
// returns the post-write record as the store returns it.
func (c *Client) ReplaceAnalysis(ctx context.Context, id string, analysis AnalysisResult) (Recording, error) {
	var resp Recording
	err := c.do(ctx, http.MethodPut, "v0/videos/"+url.PathEscape(id)+"/analysis", analysis, &resp)
	return resp, err
}

// CreateRecording ingests a completed analysis as a new recording.
func (c *Client) CreateRecording(ctx context.Context, rec Recording) (Recording, error) {
	var resp Recording
	err := c.do(ctx, http.MethodPost, "v0/videos", rec, &resp)
	return resp, err
}

// Summaries returns all meeting summaries, newest first.
func (c *Client) Summaries(ctx context.Context) ([]Summary, error) {
	var resp []Summary
	err := c.do(ctx, http.MethodGet, "api/summaries", nil, &resp)
	return resp, err
}

// Submit forwards a recording URL for analysis. The transport timeout is
// widened to 60 seconds here, the manual-retry boundary, on top of the
// forwarder's own 30 second upstream abort.
func (c *Client) Submit(ctx context.Context, loomURL, recordingType string) (Submission, error) {
	body := map[string]any{"loom_url": loomURL}
	if recordingType != "" {
		body["recording_type"] = recordingType
	}
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	raw, err := c.doRaw(ctx, http.MethodPost, "api/loom-proxy", body)
	if err != nil {
		return Submission{}, err
	}
	sub := Submission{Status: "completed", Raw: raw}
	var tagged struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &tagged) == nil && tagged.Status != "" {
		sub.Status = tagged.Status
		sub.Message = tagged.Message
	}
	return sub, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	raw, err := c.doRaw(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return json.RawMessage(data), nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
