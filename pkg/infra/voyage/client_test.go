package voyage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rankbridge/rerankgate/pkg/domain"
	"github.com/rankbridge/rerankgate/pkg/domain/rerank"
	"github.com/rankbridge/rerankgate/pkg/infra/httpx"
	"github.com/rankbridge/rerankgate/pkg/infra/httpx/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		APIKey:       "pa-test-key",
		BaseURL:      "https://api.voyageai.com/v1",
		Timeout:      30 * time.Second,
		DefaultModel: "rerank-2.5",
	}
}

func testRequest() *rerank.Request {
	return &rerank.Request{
		Query: "return policy",
		Documents: []rerank.Document{
			{ID: "d0", Content: "our returns last 30 days"},
			{ID: "d1", Content: "no returns for sale items"},
		},
	}
}

func newTestClient(cfg Config, httpClient httpx.Client) Client {
	breaker := httpx.NewCircuitBreaker("voyage-test", 30*time.Second, 3, 3)
	return NewClient(cfg, httpClient, breaker, logrus.New())
}

func httpResponse(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

func TestClient_Rerank_MissingAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	client := newTestClient(cfg, &mocks.MockHTTPClient{})

	_, err := client.Rerank(context.Background(), testRequest())

	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestClient_Rerank_Success(t *testing.T) {
	upstream := []byte(`{
		"object": "list",
		"data": [
			{"index": 1, "relevance_score": 0.95},
			{"index": 0, "relevance_score": 0.2}
		],
		"model": "rerank-2.5",
		"usage": {"total_tokens": 18}
	}`)

	var captured *http.Request
	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Do", mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(0).(*http.Request)
	}).Return(httpResponse(http.StatusOK, upstream), nil)

	client := newTestClient(testConfig(), httpClient)
	result, err := client.Rerank(context.Background(), testRequest())

	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Ranked, 2)
	assert.Equal(t, "d1", result.Ranked[0].ID)
	assert.Equal(t, 0.95, *result.Ranked[0].Score)
	assert.Equal(t, "rerank-2.5", result.Model)
	assert.Equal(t, 18, result.Usage.TotalTokens)
	assert.JSONEq(t, string(upstream), string(result.Raw))
	assert.False(t, result.Cached)

	require.NotNil(t, captured)
	assert.Equal(t, "https://api.voyageai.com/v1/rerank", captured.URL.String())
	assert.Equal(t, "Bearer pa-test-key", captured.Header.Get("Authorization"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
}

func TestClient_Rerank_PayloadShape(t *testing.T) {
	var payload map[string]interface{}
	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Do", mock.Anything).Run(func(args mock.Arguments) {
		req := args.Get(0).(*http.Request)
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
		require.NoError(t, json.Unmarshal(body, &payload))
	}).Return(httpResponse(http.StatusOK, []byte(`{"data":[]}`)), nil)

	req := testRequest()
	req.TopK = 1
	client := newTestClient(testConfig(), httpClient)
	_, err := client.Rerank(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "return policy", payload["query"])
	assert.Equal(t, "rerank-2.5", payload["model"])
	assert.Equal(t, float64(1), payload["top_k"])
	assert.Equal(t,
		[]interface{}{"our returns last 30 days", "no returns for sale items"},
		payload["documents"],
	)
}

func TestClient_Rerank_DisallowedModelFallsBackToDefault(t *testing.T) {
	var payload map[string]interface{}
	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Do", mock.Anything).Run(func(args mock.Arguments) {
		req := args.Get(0).(*http.Request)
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
		require.NoError(t, json.Unmarshal(body, &payload))
	}).Return(httpResponse(http.StatusOK, []byte(`{"data":[]}`)), nil)

	cfg := testConfig()
	cfg.AllowedModels = []string{"rerank-2.5", "rerank-2.5-lite"}

	req := testRequest()
	req.Model = "rerank-experimental"

	client := newTestClient(cfg, httpClient)
	_, err := client.Rerank(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "rerank-2.5", payload["model"])
}

func TestClient_Rerank_UpstreamError(t *testing.T) {
	upstream := []byte(`{"detail": "rate limit exceeded"}`)
	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Do", mock.Anything).Return(httpResponse(http.StatusTooManyRequests, upstream), nil)

	client := newTestClient(testConfig(), httpClient)
	_, err := client.Rerank(context.Background(), testRequest())

	require.Error(t, err)
	upstreamErr, ok := domain.IsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, upstreamErr.StatusCode)
	assert.JSONEq(t, string(upstream), string(upstreamErr.Body))
}

func TestClient_Rerank_TransportError(t *testing.T) {
	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	client := newTestClient(testConfig(), httpClient)
	_, err := client.Rerank(context.Background(), testRequest())

	require.Error(t, err)
	assert.True(t, domain.IsUnreachableError(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClient_Rerank_OpenBreakerSurfacesAsUnreachable(t *testing.T) {
	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	breaker := httpx.NewCircuitBreaker("voyage-breaker-test", 30*time.Second, 1, 1)
	client := NewClient(testConfig(), httpClient, breaker, logrus.New())

	// First failure opens the circuit.
	req := testRequest()
	_, err := client.Rerank(context.Background(), req)
	require.Error(t, err)

	// Subsequent requests fail without reaching the transport. Vary the
	// query so singleflight does not coalesce with the first call.
	req2 := testRequest()
	req2.Query = "shipping policy"
	_, err = client.Rerank(context.Background(), req2)
	require.Error(t, err)
	assert.True(t, domain.IsUnreachableError(err))
	assert.Contains(t, err.Error(), "circuit breaker is open")
	httpClient.AssertNumberOfCalls(t, "Do", 1)
}

func TestClient_Rerank_UnusableBodyFallsBackToPassthrough(t *testing.T) {
	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Do", mock.Anything).Return(httpResponse(http.StatusOK, []byte(`{"object": "list"}`)), nil)

	client := newTestClient(testConfig(), httpClient)
	result, err := client.Rerank(context.Background(), testRequest())

	require.NoError(t, err)
	require.Len(t, result.Ranked, 2)
	assert.Equal(t, "d0", result.Ranked[0].ID)
	assert.Nil(t, result.Ranked[0].Score)
	assert.Nil(t, result.Ranked[1].Score)
}

func TestClient_Rerank_ShortBareFloatListKeepsAllDocuments(t *testing.T) {
	// One float for two documents: the positional mapping is ambiguous, so
	// every document must survive via the unscored passthrough instead of
	// the unmatched ones silently disappearing.
	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Do", mock.Anything).Return(httpResponse(http.StatusOK, []byte(`{"scores": [0.7]}`)), nil)

	client := newTestClient(testConfig(), httpClient)
	result, err := client.Rerank(context.Background(), testRequest())

	require.NoError(t, err)
	require.Len(t, result.Ranked, 2)
	assert.Equal(t, "d0", result.Ranked[0].ID)
	assert.Equal(t, "d1", result.Ranked[1].ID)
	assert.Nil(t, result.Ranked[0].Score)
	assert.Nil(t, result.Ranked[1].Score)
}

func TestClient_Rerank_GzipResponse(t *testing.T) {
	upstream := []byte(`{"data": [{"index": 0, "relevance_score": 0.5}]}`)

	var compressed bytes.Buffer
	gw := gzip.NewWriter(&compressed)
	_, err := gw.Write(upstream)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	resp := httpResponse(http.StatusOK, compressed.Bytes())
	resp.Header.Set("Content-Encoding", "gzip")

	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Do", mock.Anything).Return(resp, nil)

	client := newTestClient(testConfig(), httpClient)
	result, err := client.Rerank(context.Background(), testRequest())

	require.NoError(t, err)
	require.Len(t, result.Ranked, 1)
	assert.Equal(t, 0.5, *result.Ranked[0].Score)
}

func TestFingerprint(t *testing.T) {
	req := testRequest()

	same := Fingerprint("rerank-2.5", req)
	assert.Equal(t, same, Fingerprint("rerank-2.5", testRequest()))

	otherModel := Fingerprint("rerank-2.5-lite", req)
	assert.NotEqual(t, same, otherModel)

	otherQuery := testRequest()
	otherQuery.Query = "shipping policy"
	assert.NotEqual(t, same, Fingerprint("rerank-2.5", otherQuery))

	otherTopK := testRequest()
	otherTopK.TopK = 1
	assert.NotEqual(t, same, Fingerprint("rerank-2.5", otherTopK))

	otherDocs := testRequest()
	otherDocs.Documents = otherDocs.Documents[:1]
	assert.NotEqual(t, same, Fingerprint("rerank-2.5", otherDocs))
}
