package rerank_test

import (
	"testing"

	"github.com/rankbridge/rerankgate/pkg/domain"
	"github.com/rankbridge/rerankgate/pkg/domain/rerank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     rerank.Request
		wantErr error
	}{
		{
			name: "valid request",
			req: rerank.Request{
				Query:     "return policy",
				Documents: []rerank.Document{{Content: "returns last 30 days"}},
			},
		},
		{
			name: "missing query",
			req: rerank.Request{
				Documents: []rerank.Document{{Content: "doc"}},
			},
			wantErr: domain.ErrEmptyQuery,
		},
		{
			name:    "no documents",
			req:     rerank.Request{Query: "q"},
			wantErr: domain.ErrNoDocuments,
		},
		{
			name: "empty document content",
			req: rerank.Request{
				Query:     "q",
				Documents: []rerank.Document{{Content: "ok"}, {ID: "d2"}},
			},
			wantErr: domain.ErrEmptyDocument,
		},
		{
			name: "negative top_k",
			req: rerank.Request{
				Query:     "q",
				Documents: []rerank.Document{{Content: "doc"}},
				TopK:      -1,
			},
			wantErr: domain.ErrNegativeTopK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequest_Limit(t *testing.T) {
	docs := []rerank.Document{{Content: "a"}, {Content: "b"}, {Content: "c"}}

	tests := []struct {
		name string
		topK int
		want int
	}{
		{name: "zero returns all", topK: 0, want: 3},
		{name: "within range", topK: 2, want: 2},
		{name: "clamped to document count", topK: 10, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := rerank.Request{Query: "q", Documents: docs, TopK: tt.topK}
			assert.Equal(t, tt.want, req.Limit())
		})
	}
}

func TestJoin_SortsByDescendingScore(t *testing.T) {
	docs := []rerank.Document{
		{ID: "d0", Content: "first"},
		{ID: "d1", Content: "second", Metadata: map[string]interface{}{"source": "faq"}},
		{ID: "d2", Content: "third"},
	}
	scores := []rerank.Score{
		{Index: 0, RelevanceScore: 0.1},
		{Index: 1, RelevanceScore: 0.9},
		{Index: 2, RelevanceScore: 0.5},
	}

	ranked := rerank.Join(docs, scores, 0)

	require.Len(t, ranked, 3)
	assert.Equal(t, "d1", ranked[0].ID)
	assert.Equal(t, "d2", ranked[1].ID)
	assert.Equal(t, "d0", ranked[2].ID)
	assert.Equal(t, 0.9, *ranked[0].Score)
	assert.Equal(t, map[string]interface{}{"source": "faq"}, ranked[0].Metadata)
	assert.Equal(t, 1, ranked[0].Index)
}

func TestJoin_AppliesLimit(t *testing.T) {
	docs := []rerank.Document{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	scores := []rerank.Score{
		{Index: 0, RelevanceScore: 0.3},
		{Index: 1, RelevanceScore: 0.2},
		{Index: 2, RelevanceScore: 0.8},
	}

	ranked := rerank.Join(docs, scores, 2)

	require.Len(t, ranked, 2)
	assert.Equal(t, "c", ranked[0].Content)
	assert.Equal(t, "a", ranked[1].Content)
}

func TestJoin_DropsOutOfRangeIndices(t *testing.T) {
	docs := []rerank.Document{{Content: "only"}}
	scores := []rerank.Score{
		{Index: 5, RelevanceScore: 0.9},
		{Index: -1, RelevanceScore: 0.8},
		{Index: 0, RelevanceScore: 0.2},
	}

	ranked := rerank.Join(docs, scores, 0)

	require.Len(t, ranked, 1)
	assert.Equal(t, "only", ranked[0].Content)
}

func TestJoin_StableForEqualScores(t *testing.T) {
	docs := []rerank.Document{{ID: "a", Content: "a"}, {ID: "b", Content: "b"}}
	scores := []rerank.Score{
		{Index: 0, RelevanceScore: 0.5},
		{Index: 1, RelevanceScore: 0.5},
	}

	ranked := rerank.Join(docs, scores, 0)

	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].ID)
	assert.Equal(t, "b", ranked[1].ID)
}

func TestPassthrough(t *testing.T) {
	docs := []rerank.Document{
		{ID: "d0", Content: "first"},
		{ID: "d1", Content: "second"},
	}

	ranked := rerank.Passthrough(docs)

	require.Len(t, ranked, 2)
	for i, r := range ranked {
		assert.Equal(t, docs[i].ID, r.ID)
		assert.Equal(t, i, r.Index)
		assert.Nil(t, r.Score)
	}
}
