package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Status tags the upstream service's response. The upstream sometimes answers
// with plain text instead of JSON; that is treated as a designed leniency and
// kept distinguishable rather than coerced into one success shape.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusProcessing Status = "processing"
	StatusPlainText  Status = "plain_text"
	StatusFailed     Status = "failed"
)

// Outcome is the tagged result of a submission.
type Outcome struct {
	Status  Status
	Message string          // processing or plain-text message, trimmed
	Body    json.RawMessage // verbatim upstream JSON when Status is completed
	Code    int             // upstream HTTP status when Status is failed
}

// Client forwards recording URLs to the external transcript-analysis service.
type Client struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with the default 30 second transport timeout.
func New(upstreamURL string) *Client {
	return &Client{URL: upstreamURL, Timeout: 30 * time.Second}
}

type submitRequest struct {
	LoomURL       string `json:"loom_url"`
	RecordingType string `json:"recording_type,omitempty"`
}

// Submit forwards the URL and recording-type hint upstream. A transport
// failure (including the timeout-triggered abort) is returned as an error;
// every upstream response, JSON or not, becomes an Outcome.
func (c *Client) Submit(ctx context.Context, loomURL, recordingType string) (Outcome, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	payload, err := json.Marshal(submitRequest{LoomURL: loomURL, RecordingType: recordingType})
	if err != nil {
		return Outcome{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("analyzer request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("read analyzer response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{Status: StatusFailed, Code: resp.StatusCode, Message: string(body)}, nil
	}
	if json.Valid(body) && len(bytes.TrimSpace(body)) > 0 {
		return Outcome{Status: StatusCompleted, Body: json.RawMessage(body)}, nil
	}
	text := strings.TrimSpace(string(body))
	if isProcessingMessage(text) {
		return Outcome{Status: StatusProcessing, Message: text}, nil
	}
	return Outcome{Status: StatusPlainText, Message: text}, nil
}

// isProcessingMessage matches the upstream's "we will process your request in
// the background" phrasing.
func isProcessingMessage(s string) bool {
	lowered := strings.ToLower(s)
	return strings.Contains(lowered, "process") && strings.Contains(lowered, "background")
}
