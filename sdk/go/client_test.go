package loomifysdk

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedClient() *Client {
	c := New("http://loomify.test")
	c.HTTPClient = &http.Client{}
	httpmock.ActivateNonDefault(c.HTTPClient)
	return c
}

func TestFetchOneNotFound(t *testing.T) {
	c := newMockedClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://loomify.test/v0/videos/nope",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":{"code":"not_found","message":"not found"}}`))

	_, err := c.FetchOne(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFetchOneOtherErrorIsAPIError(t *testing.T) {
	c := newMockedClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://loomify.test/v0/videos/rec-1",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, err := c.FetchOne(context.Background(), "rec-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Body)
}

func TestReplaceAnalysisReturnsPostWriteRecord(t *testing.T) {
	c := newMockedClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPut, "http://loomify.test/v0/videos/rec-1/analysis",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"rec-1","title":"Standup","updated_at":"2024-03-01T12:00:00Z","llm_answer":{"developers":[{"dev":"Alice","tasks":[{"task":"Fix login","completed":true}]}]}}`))

	rec, err := c.ReplaceAnalysis(context.Background(), "rec-1", AnalysisResult{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z", rec.UpdatedAt)
	require.Len(t, rec.Analysis.Developers, 1)
	assert.True(t, rec.Analysis.Developers[0].Tasks[0].Completed)
}

func TestSubmitTaggedProcessing(t *testing.T) {
	c := newMockedClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://loomify.test/api/loom-proxy",
		httpmock.NewStringResponder(http.StatusOK, `{"status":"processing","message":"queued"}`))

	sub, err := c.Submit(context.Background(), "https://www.loom.com/share/abc", "")
	require.NoError(t, err)
	assert.Equal(t, "processing", sub.Status)
	assert.Equal(t, "queued", sub.Message)
}

func TestSubmitUntaggedJSONIsCompleted(t *testing.T) {
	c := newMockedClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://loomify.test/api/loom-proxy",
		httpmock.NewStringResponder(http.StatusOK, `{"id":"up-1","title":"Standup"}`))

	sub, err := c.Submit(context.Background(), "https://www.loom.com/share/abc", "meeting")
	require.NoError(t, err)
	assert.Equal(t, "completed", sub.Status)
	assert.JSONEq(t, `{"id":"up-1","title":"Standup"}`, string(sub.Raw))
}

func TestSubmitUpstreamErrorSurfaces(t *testing.T) {
	c := newMockedClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://loomify.test/api/loom-proxy",
		httpmock.NewStringResponder(http.StatusBadGateway, `{"error":"Fetch operation failed: timeout"}`))

	_, err := c.Submit(context.Background(), "https://www.loom.com/share/abc", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}
