package voyage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRerankResponse_DataObjects(t *testing.T) {
	body := []byte(`{
		"object": "list",
		"data": [
			{"index": 1, "relevance_score": 0.91},
			{"index": 0, "relevance_score": 0.12}
		],
		"model": "rerank-2.5",
		"usage": {"total_tokens": 26}
	}`)

	parsed := parseRerankResponse(body, 2)

	require.Len(t, parsed.Scores, 2)
	assert.Equal(t, 1, parsed.Scores[0].Index)
	assert.Equal(t, 0.91, parsed.Scores[0].RelevanceScore)
	assert.Equal(t, "rerank-2.5", parsed.Model)
	assert.Equal(t, 26, parsed.Usage.TotalTokens)
}

func TestParseRerankResponse_ScoreKeyFallback(t *testing.T) {
	body := []byte(`{"results": [{"index": 0, "score": 0.7}]}`)

	parsed := parseRerankResponse(body, 1)

	require.Len(t, parsed.Scores, 1)
	assert.Equal(t, 0.7, parsed.Scores[0].RelevanceScore)
}

func TestParseRerankResponse_BareFloatList(t *testing.T) {
	body := []byte(`{"scores": [0.3, 0.9, 0.1]}`)

	parsed := parseRerankResponse(body, 3)

	require.Len(t, parsed.Scores, 3)
	for i, s := range parsed.Scores {
		assert.Equal(t, i, s.Index)
	}
	assert.Equal(t, 0.9, parsed.Scores[1].RelevanceScore)
}

func TestParseRerankResponse_BareFloatListLengthMismatch(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		docCount int
	}{
		{name: "fewer scores than documents", body: `{"scores": [0.7]}`, docCount: 2},
		{name: "more scores than documents", body: `{"scores": [0.7, 0.3, 0.1]}`, docCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := parseRerankResponse([]byte(tt.body), tt.docCount)
			assert.Empty(t, parsed.Scores)
		})
	}
}

func TestParseRerankResponse_UnusableShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not JSON", body: `not json at all`},
		{name: "top-level array", body: `[1, 2, 3]`},
		{name: "empty object", body: `{}`},
		{name: "data without scores", body: `{"data": [{"document": "text"}]}`},
		{name: "mixed types in list", body: `{"scores": [0.5, "high"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := parseRerankResponse([]byte(tt.body), 2)
			assert.Empty(t, parsed.Scores)
		})
	}
}

func TestParseRerankResponse_PrefersDataOverResults(t *testing.T) {
	body := []byte(`{
		"data": [{"index": 0, "relevance_score": 0.8}],
		"results": [{"index": 0, "score": 0.1}]
	}`)

	parsed := parseRerankResponse(body, 1)

	require.Len(t, parsed.Scores, 1)
	assert.Equal(t, 0.8, parsed.Scores[0].RelevanceScore)
}
